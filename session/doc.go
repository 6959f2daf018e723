// Package session wires a looper, its background pools, an idling resource
// registry, an injector and a controller into one explicitly owned unit,
// constructed once per test run.
//
// Tests interact with the looper through [Session.RunOnMain], which runs a
// function on the looper goroutine with access to the [controller.Controller]:
//
//	s, err := session.New(session.WithInputTarget(window))
//	...
//	s.Start()
//	defer s.Close(ctx)
//	err = s.RunOnMain(ctx, func(ctx context.Context, c *controller.Controller) error {
//		if _, err := c.InjectString(ctx, "hello"); err != nil {
//			return err
//		}
//		return c.LoopMainThreadUntilIdle(ctx)
//	})
package session

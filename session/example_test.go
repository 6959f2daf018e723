package session_test

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-uisync/controller"
	"github.com/joeycumines/go-uisync/idling"
	"github.com/joeycumines/go-uisync/inject"
	"github.com/joeycumines/go-uisync/session"
)

func ExampleSession_RunOnMain() {
	recorder := &inject.Recorder{}
	s, err := session.New(session.WithDeliveryStrategy(recorder), session.WithLogger(nil))
	if err != nil {
		panic(err)
	}
	if err := s.Start(); err != nil {
		panic(err)
	}
	defer s.Close(context.Background())

	download := idling.NewCountingResource(`download`)
	download.Increment()
	if _, err := s.RegisterIdlingResources(context.Background(), download); err != nil {
		panic(err)
	}
	time.AfterFunc(10*time.Millisecond, download.Decrement)

	err = s.RunOnMain(context.Background(), func(ctx context.Context, c *controller.Controller) error {
		if err := c.LoopMainThreadUntilIdle(ctx); err != nil {
			return err
		}
		ok, err := c.InjectString(ctx, `Go!`)
		fmt.Println(`typed:`, ok)
		return err
	})
	if err != nil {
		panic(err)
	}

	fmt.Println(`key events:`, len(recorder.Keys()))
	fmt.Println(`download busy:`, download.Count() != 0)

	//output:
	//typed: true
	//key events: 10
	//download busy: false
}

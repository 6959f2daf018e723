package looper_test

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-uisync/looper"
)

func ExampleLooper_RunSync() {
	l, err := looper.New()
	if err != nil {
		panic(err)
	}
	go func() { _ = l.Run(context.Background()) }()
	defer l.Close()

	_ = l.RunSync(context.Background(), func() error {
		fmt.Println("on loop:", l.IsCurrentThread())
		return nil
	})

	//output:
	//on loop: true
}

/*
This is an example of application that will use the
resource module to test things out
*/
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaghettifunk/quiver/testbed"
)

func main() {
	tb, err := testbed.NewTestGame()
	if err != nil {
		panic(err)
	}

	if err := tb.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-sigCh:
			if err := tb.Shutdown(); err != nil {
				panic(err)
			}
			return
		case now := <-ticker.C:
			delta := now.Sub(last).Seconds()
			last = now
			if err := tb.Update(delta); err != nil {
				panic(err)
			}
		}
	}
}

// Package app provides the bootstrap pattern every NLDS component process
// uses: an App interface and a Launcher that runs a set of named Apps
// concurrently and waits for all of them, draining on SIGINT/SIGTERM.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cedadev/nlds-go/common/console"
	"github.com/cedadev/nlds-go/pkg/mlog"
)

// App is a deployable unit within a component process (a consumer loop, an
// admin HTTP server, a periodic trigger). It's an entrypoint at main.go.
type App interface {
	Run(ctx context.Context, launcher *Launcher) error
}

// Launcher manages the Apps registered with it, running each in its own
// goroutine and waiting for all to finish or for a shutdown signal.
type Launcher struct {
	Logger mlog.Logger

	apps map[string]App
	wg   *sync.WaitGroup
}

// NewLauncher builds an empty Launcher bound to logger.
func NewLauncher(logger mlog.Logger) *Launcher {
	return &Launcher{
		Logger: logger,
		apps:   make(map[string]App),
		wg:     new(sync.WaitGroup),
	}
}

// Add registers an App under name.
func (l *Launcher) Add(name string, a App) *Launcher {
	l.apps[name] = a
	return l
}

// Run starts every registered App in its own goroutine and blocks until
// either all apps return or the process receives SIGINT/SIGTERM, in which
// case the shared context is cancelled so in-flight apps can drain.
func (l *Launcher) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count := len(l.apps)
	l.wg.Add(count)

	l.Logger.Info(console.Title("Launcher Run"))
	l.Logger.Infof("Starting %d app(s)", count)

	for name, a := range l.apps {
		go func(name string, a App) {
			defer l.wg.Done()

			l.Logger.Infof("Launcher: app (%s) starting", name)

			if err := a.Run(ctx, l); err != nil && ctx.Err() == nil {
				l.Logger.Errorf("Launcher: app (%s) error: %v", name, err)
			}

			l.Logger.Infof("Launcher: app (%s) finished", name)
		}(name, a)
	}

	l.wg.Wait()

	l.Logger.Info("Launcher: terminated")
}

package viewer

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/wppscrape/internal/archive"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// App is the viewer's terminal application.
type App struct {
	app       *tview.Application
	model     *Model
	table     *chatTable
	pane      *messagePane
	statusBar *statusBar
	dir       string
	logger    *zap.Logger

	notice string
}

// NewApp creates a viewer for the archives in dir, starting at date.
func NewApp(dir, date string, logger *zap.Logger) *App {
	a := &App{
		app:       tview.NewApplication(),
		model:     NewModel(archive.New(archive.NewFileBackend(dir), logger), date),
		table:     newChatTable(),
		pane:      newMessagePane(),
		statusBar: newStatusBar(),
		dir:       dir,
		logger:    logger,
	}
	a.setupLayout()
	return a
}

func (a *App) setupLayout() {
	a.table.SetSelectionChangedFunc(func(_, _ int) {
		a.showSelected()
	})

	body := tview.NewFlex().
		AddItem(a.table, 0, 2, true).
		AddItem(a.pane, 0, 3, false)
	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyTab:
			if a.table.HasFocus() {
				a.app.SetFocus(a.pane)
			} else {
				a.app.SetFocus(a.table)
			}
			return nil
		case event.Key() != tcell.KeyRune:
			return event
		}
		switch event.Rune() {
		case 'q':
			a.app.Stop()
		case 'r':
			go a.reload(context.Background())
		case '[':
			go a.step(context.Background(), -1)
		case ']':
			go a.step(context.Background(), 1)
		default:
			return event
		}
		return nil
	})
}

func (a *App) showSelected() {
	chat := a.table.selected()
	a.pane.show(chat, a.model.Messages(chat))
}

// refresh redraws every widget from the model. Must run on the UI goroutine.
func (a *App) refresh() {
	rows := a.model.Rows()
	a.table.update(rows)
	a.showSelected()
	a.statusBar.render(a.model.Date(), len(rows), a.model.LoadedAt(), a.notice)
}

func (a *App) reload(ctx context.Context) {
	err := a.model.Reload(ctx)
	a.app.QueueUpdateDraw(func() {
		a.notice = ""
		if err != nil {
			a.notice = "reload failed: " + err.Error()
		}
		a.refresh()
	})
}

func (a *App) step(ctx context.Context, delta int) {
	moved, err := a.model.Step(ctx, delta)
	a.app.QueueUpdateDraw(func() {
		switch {
		case err != nil:
			a.notice = err.Error()
		case !moved:
			a.notice = "no more archived days"
		default:
			a.notice = ""
		}
		a.refresh()
	})
}

// Run loads the first day, starts watching the archive directory and
// blocks until the operator quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.model.Reload(ctx); err != nil {
		return err
	}
	a.refresh()

	go func() {
		err := Watch(ctx, a.dir, func(name string) {
			if name == archive.FileName(a.model.Date()) {
				a.reload(ctx)
			}
		}, a.logger)
		if err != nil {
			a.logger.Warn("live reload disabled", zap.Error(err))
			a.app.QueueUpdateDraw(func() {
				a.notice = "live reload disabled"
				a.refresh()
			})
		}
	}()

	// Fallback for filesystems that do not report changes.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.reload(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.app.Run()
}

package login

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wppscrape/internal/bus"
	"github.com/matheus3301/wppscrape/internal/page"
	"github.com/matheus3301/wppscrape/internal/page/pagetest"
	"github.com/matheus3301/wppscrape/internal/scrape"
	"github.com/matheus3301/wppscrape/internal/status"
	"go.uber.org/zap"
)

var loc = scrape.DefaultLocators()

func testOptions() Options {
	return Options{
		URL:          "https://web.whatsapp.com",
		ReadyTimeout: 200 * time.Millisecond,
		LoginTimeout: 2 * time.Second,
		PollInterval: time.Millisecond,
	}
}

// syncBuffer guards writes made by the bootstrapper while tests read.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunAlreadyLinked(t *testing.T) {
	d := pagetest.New().Show(loc.ChatList, `<div role="grid"></div>`)
	sm := status.NewMachine(nil)

	if err := New(d, loc, testOptions(), sm, nil, &syncBuffer{}, zap.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sm.Current() != status.Ready {
		t.Errorf("status = %s, want READY", sm.Current())
	}
	if d.Count("navigate:https://web.whatsapp.com") != 1 {
		t.Errorf("calls = %v", d.Calls())
	}
}

func TestRunWalksThroughQRPairing(t *testing.T) {
	d := pagetest.New().
		Show(loc.QRCanvas, `<canvas></canvas>`).
		Show(loc.QRPayload, `<div data-ref="2@pairing-ref"></div>`)
	b := bus.New()
	sm := status.NewMachine(b)
	statuses, unsubStatus := b.Subscribe(bus.KindStatusChanged, 16)
	defer unsubStatus()
	qrs, unsubQR := b.Subscribe(bus.KindQRGenerated, 1)
	defer unsubQR()

	// The phone scans the code as soon as it is shown.
	go func() {
		<-qrs
		d.Show(loc.ChatList, `<div role="grid"></div>`)
		d.Hide(loc.QRCanvas)
	}()

	out := &syncBuffer{}
	if err := New(d, loc, testOptions(), sm, b, out, zap.NewNop()).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Scan this QR code") {
		t.Errorf("QR not rendered, output:\n%s", out.String())
	}

	var path []status.State
	for len(statuses) > 0 {
		evt := <-statuses
		path = append(path, evt.Payload.(status.StatusChange).To)
	}
	want := []status.State{status.Loading, status.AuthRequired, status.Loading, status.Ready}
	if len(path) != len(want) {
		t.Fatalf("status path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("status path = %v, want %v", path, want)
			break
		}
	}
}

func TestRunTimesOutWhenNothingRenders(t *testing.T) {
	d := pagetest.New()
	sm := status.NewMachine(nil)

	err := New(d, loc, testOptions(), sm, nil, &syncBuffer{}, zap.NewNop()).Run(context.Background())
	if !errors.Is(err, ErrBootstrap) || !errors.Is(err, page.ErrTimedOut) {
		t.Fatalf("Run() error = %v, want bootstrap timeout", err)
	}
	if sm.Current() != status.Error {
		t.Errorf("status = %s, want ERROR", sm.Current())
	}
}

func TestRenderQR(t *testing.T) {
	qr := RenderQR("2@pairing-ref")
	if lines := strings.Count(qr, "\n"); lines < 10 {
		t.Errorf("QR has %d lines, want a full code", lines)
	}
}

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/trading-point/chartiq-agent/internal/chartiq"
)

// Handler receives events synchronously on the listener's event goroutine.
// That goroutine is the designated control goroutine for the load lifecycle;
// handlers must not block.
type Handler func(Event)

// Listener attaches to the chart tab with chromedp and converts CDP traffic
// into bridge events. It is the passive counterpart of the eval client: it
// registers the native binding the in-page bridge posts through and owns
// all event delivery.
type Listener struct {
	cdpURL    string
	tabFilter string
	broker    *Broker
	handler   Handler

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	targetID    target.ID
}

func NewListener(cdpURL, tabFilter string, broker *Broker, handler Handler) *Listener {
	return &Listener{
		cdpURL:    cdpURL,
		tabFilter: strings.ToLower(strings.TrimSpace(tabFilter)),
		broker:    broker,
		handler:   handler,
	}
}

// Connect finds the chart tab, attaches to it and starts event delivery.
func (l *Listener) Connect(ctx context.Context) error {
	_ = ctx
	slog.Info("bridge connecting", "cdp_url", l.cdpURL, "tab_filter", l.tabFilter)

	l.allocCtx, l.allocCancel = chromedp.NewRemoteAllocator(context.Background(), l.cdpURL)

	tempCtx, tempCancel := chromedp.NewContext(l.allocCtx)
	defer tempCancel()
	if err := chromedp.Run(tempCtx); err != nil {
		l.allocCancel()
		return fmt.Errorf("bridge: connect to browser: %w", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		l.allocCancel()
		return fmt.Errorf("bridge: enumerate targets: %w", err)
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if l.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), l.tabFilter) {
			continue
		}
		if err := l.attach(t.TargetID, t.URL); err != nil {
			l.allocCancel()
			return err
		}
		slog.Info("bridge attached", "target_id", t.TargetID, "url", t.URL)
		return nil
	}

	l.allocCancel()
	return fmt.Errorf("bridge: no chart tab matches filter %q", l.tabFilter)
}

func (l *Listener) attach(targetID target.ID, url string) error {
	l.targetID = targetID
	l.tabCtx, l.tabCancel = chromedp.NewContext(l.allocCtx, chromedp.WithTargetID(targetID))

	if err := chromedp.Run(l.tabCtx,
		runtime.Enable(),
		page.Enable(),
		runtime.AddBinding(chartiq.BridgeBinding),
	); err != nil {
		l.tabCancel()
		return fmt.Errorf("bridge: enable domains on %s: %w", url, err)
	}

	chromedp.ListenTarget(l.tabCtx, l.onCDPEvent)
	return nil
}

// TargetID returns the attached tab's target ID.
func (l *Listener) TargetID() target.ID { return l.targetID }

// Close detaches from the tab and stops event delivery.
func (l *Listener) Close() error {
	if l.tabCancel != nil {
		l.tabCancel()
	}
	if l.allocCancel != nil {
		l.allocCancel()
	}
	slog.Info("bridge closed")
	return nil
}

// onCDPEvent translates CDP events into bridge events. chromedp invokes it
// on a single goroutine per target, which keeps downstream load-tracker
// transitions serialized.
func (l *Listener) onCDPEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame.ParentID != "" {
			return
		}
		l.deliver(Event{
			Kind:     EventNavigationCommit,
			TargetID: string(l.targetID),
			Time:     time.Now(),
			URL:      e.Frame.URL,
		})
	case *page.EventDomContentEventFired:
		l.deliver(Event{
			Kind:     EventHTMLLoaded,
			TargetID: string(l.targetID),
			Time:     time.Now(),
		})
	case *inspector.EventTargetCrashed:
		l.deliver(Event{
			Kind:     EventContentTerminated,
			TargetID: string(l.targetID),
			Time:     time.Now(),
		})
	case *runtime.EventBindingCalled:
		if e.Name != chartiq.BridgeBinding {
			return
		}
		kind, payload, err := parseBridgeMessage(e.Payload)
		if err != nil {
			slog.Warn("bridge message dropped", "error", err)
			return
		}
		l.deliver(Event{
			Kind:     kind,
			TargetID: string(l.targetID),
			Time:     time.Now(),
			Payload:  payload,
		})
	}
}

func (l *Listener) deliver(evt Event) {
	if l.handler != nil {
		l.handler(evt)
	}
	if l.broker != nil {
		l.broker.Publish(evt)
	}
}

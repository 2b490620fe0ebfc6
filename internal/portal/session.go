package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionGate verifies an authenticated portal session exists before any
// automation begins. The system never creates or stores credentials; logging
// in is the user's prior responsibility. When no session is detected the
// gate optionally waits for the user to log in through the visible browser
// window, the way the portal is normally used.
type SessionGate struct {
	auto   Automation
	logger *slog.Logger

	// LoginWait is how long to wait for an interactive login after the
	// first failed probe. Zero means fail immediately (headless runs).
	LoginWait time.Duration
}

// NewSessionGate creates a session gate over the given automation driver.
func NewSessionGate(auto Automation, logger *slog.Logger, loginWait time.Duration) *SessionGate {
	return &SessionGate{auto: auto, logger: logger, LoginWait: loginWait}
}

// CheckSession navigates to the report page and probes for the session
// marker. Returns ErrMarkerNotFound if no authenticated session appears
// within the login wait; that is a fatal, run-stopping condition because no
// date can succeed without a session.
func (g *SessionGate) CheckSession(ctx context.Context) error {
	if err := g.auto.Navigate(ctx); err != nil {
		return fmt.Errorf("open report page: %w", err)
	}

	visible, err := g.auto.SessionMarkerVisible(ctx)
	if err != nil {
		return err
	}
	if visible {
		g.logger.Info("active session detected")
		return nil
	}

	if g.LoginWait <= 0 {
		return ErrMarkerNotFound
	}

	g.logger.Info("no active session, waiting for interactive login",
		slog.Duration("max_wait", g.LoginWait))

	deadline := time.Now().Add(g.LoginWait)
	probe := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probe):
		}

		visible, err := g.auto.SessionMarkerVisible(ctx)
		if err != nil {
			// navigation during login makes transient probe failures normal
			g.logger.Debug("session probe failed", slog.String("error", err.Error()))
		} else if visible {
			g.logger.Info("session detected after login")
			return nil
		}

		if time.Now().After(deadline) {
			return ErrMarkerNotFound
		}
	}
}

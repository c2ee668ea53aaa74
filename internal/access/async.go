package access

import (
	"context"
	"sync"
	"time"

	"mosim.ai/internal/mmi"
)

// firstResponder runs work under a deadline and reports exactly once: the
// work's outcome if it finishes first, false if the timer fires first. The
// work's context is cancelled when the timer fires; a late outcome is dropped.
func firstResponder(timeout time.Duration, work func(ctx context.Context) bool, callback func(bool)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	var once sync.Once
	report := func(ok bool) {
		once.Do(func() {
			cancel()
			if callback != nil {
				callback(ok)
			}
		})
	}
	go func() {
		report(work(ctx))
	}()
	go func() {
		<-ctx.Done()
		report(false)
	}()
}

// ConnectAsync is Connect with a timeout and a completion callback.
func (m *MMUAccess) ConnectAsync(addresses []string, timeout time.Duration, callback func(bool), avatarID string) {
	firstResponder(timeout, func(ctx context.Context) bool {
		return m.Connect(ctx, addresses, avatarID) == nil
	}, callback)
}

func (m *MMUAccess) LoadMMUsAsync(ids []string, timeout time.Duration, callback func(bool)) {
	firstResponder(timeout, func(ctx context.Context) bool {
		if err := m.LoadMMUs(ctx, ids); err != nil {
			m.log.Printf("load: %v", err)
			return false
		}
		return true
	}, callback)
}

func (m *MMUAccess) InitializeMMUsAsync(timeout time.Duration, callback func(bool), avatarID string, desc mmi.AvatarDescription, properties map[string]string) {
	firstResponder(timeout, func(ctx context.Context) bool {
		if err := m.InitializeMMUs(ctx, avatarID, desc, properties); err != nil {
			m.log.Printf("initialize: %v", err)
			return false
		}
		return true
	}, callback)
}

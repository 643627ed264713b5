package identity

import (
	"context"
	"time"

	"github.com/Pratik1445/skillfolio/internal/session"
)

// Watch puts s into holder and clears the holder once the session expires or
// is signed out elsewhere. The returned function stops watching; it does not
// touch the holder.
func (l *Local) Watch(ctx context.Context, s *session.Session, holder *session.Holder) (func(), error) {
	holder.Set(s)
	if s == nil {
		return func() {}, nil
	}

	ctx, cancel := context.WithCancel(ctx)

	signals, stop, err := l.feed.Listen(ctx, sessionTopic(s.TokenID))
	if err != nil {
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stop()

		expiry := time.NewTimer(time.Until(s.ExpiresAt))
		defer expiry.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-expiry.C:
				l.sugar.Debugf("Session %s expired", s.TokenID)
				holder.Set(nil)
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				revoked, err := l.kv.Get(ctx, revokedKey(s.TokenID))
				if err != nil {
					l.sugar.Error(err)
					continue
				}
				if revoked != "" {
					l.sugar.Debugf("Session %s was signed out", s.TokenID)
					holder.Set(nil)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

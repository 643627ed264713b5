package jwt

import "time"

func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

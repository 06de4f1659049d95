package attendance

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
	"unicode/utf8"

	"clubattend/internal/identity"
)

// Policy holds the time-window and validation rules for check-ins.
type Policy struct {
	// Window is how far from the scheduled time a live check-in is accepted,
	// on either side.
	Window time.Duration
	// LateAfter is the delay after the scheduled time from which a live
	// check-in counts as late.
	LateAfter time.Duration
	// ExcusedCutoff is how long before the scheduled time excused filings close.
	ExcusedCutoff time.Duration
	// Reason length bounds in runes, after trimming.
	ReasonMin int
	ReasonMax int
	// Allowlist annotates entries; it never blocks admission.
	Allowlist Allowlist
}

// DefaultPolicy returns the club's standard rules with an empty allowlist.
func DefaultPolicy() Policy {
	return Policy{
		Window:        time.Hour,
		LateAfter:     15 * time.Minute,
		ExcusedCutoff: time.Hour,
		ReasonMin:     3,
		ReasonMax:     50,
	}
}

// CheckInOpen reports whether a live check-in at t is inside the window.
func (p Policy) CheckInOpen(scheduledAt, t time.Time) bool {
	delta := t.Sub(scheduledAt)
	return delta >= -p.Window && delta <= p.Window
}

// ExcusedOpen reports whether an excused filing at t is before the cutoff.
func (p Policy) ExcusedOpen(scheduledAt, t time.Time) bool {
	return t.Sub(scheduledAt) <= -p.ExcusedCutoff
}

// Attempt is everything the admission decision depends on.
type Attempt struct {
	// Session is nil when the requested session does not exist.
	Session       *Session
	ExistingEntry bool
	Identity      identity.Identity
	RequestTime   time.Time
	Kind          Kind
	ExcusedReason string
	IPAddress     string
}

// Decision is the outcome of an accepted attempt.
type Decision struct {
	Classification  Classification
	IsAllowlistedIP bool
	// ExcusedReason is the trimmed reason for excused filings.
	ExcusedReason string
}

// Decide applies the admission rules in order and either classifies the
// attempt or returns a *Rejection. It performs no I/O.
func (p Policy) Decide(a Attempt) (Decision, error) {
	if !a.Identity.IsOrganizationMember {
		return Decision{}, reject(ReasonNotOrganizationMember, nil)
	}
	if a.Session == nil {
		return Decision{}, reject(ReasonSessionNotFound, nil)
	}
	if a.ExistingEntry {
		return Decision{}, reject(ReasonDuplicateCheckIn, nil)
	}

	delta := a.RequestTime.Sub(a.Session.ScheduledAt)
	d := Decision{IsAllowlistedIP: p.Allowlist.Contains(a.IPAddress)}

	switch a.Kind {
	case KindLive:
		if !p.CheckInOpen(a.Session.ScheduledAt, a.RequestTime) {
			return Decision{}, reject(ReasonWindowClosed, fmt.Errorf("%s from scheduled time", delta.Round(time.Second)))
		}
		if delta >= p.LateAfter {
			d.Classification = Late
		} else {
			d.Classification = Present
		}
	case KindExcused:
		if !p.ExcusedOpen(a.Session.ScheduledAt, a.RequestTime) {
			return Decision{}, reject(ReasonExcusedWindowClosed, fmt.Errorf("%s from scheduled time", delta.Round(time.Second)))
		}
		reason := strings.TrimSpace(a.ExcusedReason)
		if n := utf8.RuneCountInString(reason); n < p.ReasonMin || n > p.ReasonMax {
			return Decision{}, reject(ReasonInvalidExcusedReason, fmt.Errorf("reason must be %d-%d characters, got %d", p.ReasonMin, p.ReasonMax, n))
		}
		d.Classification = Excused
		d.ExcusedReason = reason
	default:
		_, err := ParseKind(string(a.Kind))
		return Decision{}, reject(ReasonInvalidKind, err)
	}
	return d, nil
}

// Allowlist is a set of trusted network prefixes.
type Allowlist []netip.Prefix

// ParseAllowlist accepts CIDR prefixes or bare addresses.
func ParseAllowlist(entries []string) (Allowlist, error) {
	var out Allowlist
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("allowlist entry %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("allowlist entry %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip falls inside any prefix. Unparseable
// addresses never match.
func (l Allowlist) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

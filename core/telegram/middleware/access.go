package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks behave.
type AdminOptions struct {
	// Admins holds the Telegram user IDs allowed to run admin entries.
	Admins map[int64]struct{}
	// OnReject runs when a non-admin hits an admin-only handler; nil means
	// the update is silently dropped.
	OnReject tele.HandlerFunc
}

// Allowed reports whether the given user ID belongs to the admin set.
func (o AdminOptions) Allowed(id int64) bool {
	_, ok := o.Admins[id]
	return ok
}

// WithAdminCheck wraps a handler enforcing admin-only execution when required.
func WithAdminCheck(opts AdminOptions, adminOnly bool, h tele.HandlerFunc) tele.HandlerFunc {
	if !adminOnly {
		return h
	}
	return func(c tele.Context) error {
		if !opts.Allowed(c.Sender().ID) {
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
		return h(c)
	}
}

// AdminSet builds the lookup set used by AdminOptions from a list of IDs.
func AdminSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

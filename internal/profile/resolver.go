package profile

import (
	"context"

	"ionizer_portal/internal/rowstore"
	"ionizer_portal/platform/logger"
	"ionizer_portal/platform/phone"

	"golang.org/x/sync/errgroup"
)

// Reporter shows a user-facing notification for the browser bound to ctx.
type Reporter interface {
	Report(ctx context.Context, message string)
}

// Resolver runs the profile and admin-grant lookups for a principal.
type Resolver struct {
	rows     rowstore.Querier
	reporter Reporter
	log      *logger.Logger
}

// NewResolver creates a Resolver.
func NewResolver(rows rowstore.Querier, reporter Reporter, log *logger.Logger) *Resolver {
	return &Resolver{rows: rows, reporter: reporter, log: log}
}

// Resolve runs both lookups concurrently and returns when both have
// settled. Neither lookup's failure affects the other; a failed admin
// lookup yields IsAdmin=false.
func (r *Resolver) Resolve(ctx context.Context, principalID string) Resolution {
	var res Resolution

	// Plain Group: a failure in one lookup must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		res.Profile, res.ProfileErr = r.loadProfile(ctx, principalID)
		return nil
	})
	g.Go(func() error {
		grant, err := r.loadAdminGrant(ctx, principalID)
		res.AdminErr = err
		if grant != nil {
			res.IsAdmin = true
			res.Role = grant.Role
		}
		return nil
	})
	_ = g.Wait()

	return res
}

func (r *Resolver) loadProfile(ctx context.Context, principalID string) (*Profile, error) {
	var p Profile
	err := r.rows.QueryOne(ctx, TableProfiles, rowstore.Eq("id", principalID), &p)
	if err != nil {
		if rowstore.IsNoRows(err) {
			r.log.WithContext(ctx).Info("profile not found", "principal_id", principalID)
			return nil, nil
		}
		r.log.WithContext(ctx).LookupFailed(TableProfiles, principalID, err)
		r.report(ctx, MsgProfileLoadFailed)
		return nil, err
	}

	p.Phone = phone.NormalizeE164(p.Phone)
	return &p, nil
}

func (r *Resolver) loadAdminGrant(ctx context.Context, principalID string) (*AdminGrant, error) {
	var grant AdminGrant
	err := r.rows.QueryOne(ctx, TableAdminGrants, rowstore.Eq("id", principalID), &grant)
	if err != nil {
		if rowstore.IsNoRows(err) {
			return nil, nil
		}
		r.log.WithContext(ctx).LookupFailed(TableAdminGrants, principalID, err)
		r.report(ctx, MsgAdminCheckFailed)
		return nil, err
	}
	return &grant, nil
}

func (r *Resolver) report(ctx context.Context, message string) {
	if r.reporter != nil {
		r.reporter.Report(ctx, message)
	}
}

package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Engine turns a sample plus a claimed identity into a VerificationResult.
// It holds no mutable state and never writes to the ledger.
type Engine struct {
	extractor biometric.Extractor
	directory database.TemplateReader
	threshold float64
	settings
}

// NewEngine creates a verification engine. threshold <= 0 selects biometric.DefaultThreshold.
func NewEngine(extractor biometric.Extractor, directory database.TemplateReader, threshold float64, opts ...Option) *Engine {
	if threshold <= 0 {
		threshold = biometric.DefaultThreshold
	}
	return &Engine{
		extractor: extractor,
		directory: directory,
		threshold: threshold,
		settings:  newSettings(opts),
	}
}

// Threshold returns the configured match threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Verify compares the sample against the claimed identity's reference template.
// Extraction and lookup run concurrently; when both fail the extractor error wins.
func (e *Engine) Verify(ctx context.Context, claimedIdentity string, sample []byte) (VerificationResult, error) {
	start := e.now()
	claimedIdentity = strings.TrimSpace(claimedIdentity)

	result, err := e.verify(ctx, claimedIdentity, sample, start)
	e.metrics.ObserveVerifyLatency(e.now().Sub(start))
	e.record(ctx, "verify", claimedIdentity, result, err)
	return result, err
}

func (e *Engine) verify(ctx context.Context, identityID string, sample []byte, at time.Time) (VerificationResult, error) {
	if identityID == "" {
		return VerificationResult{}, fmt.Errorf("%w: identity id is required", ErrInvalidRequest)
	}
	if len(sample) == 0 {
		return VerificationResult{}, fmt.Errorf("%w: empty sample", ErrInvalidSample)
	}

	var (
		probe      biometric.Template
		ref        *database.ReferenceTemplate
		extractErr error
		lookupErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		probe, extractErr = e.extract(gctx, sample)
		return extractErr
	})
	g.Go(func() error {
		ref, lookupErr = e.lookup(gctx, identityID)
		return lookupErr
	})
	_ = g.Wait()

	if err := firstError(ctx, extractErr, lookupErr); err != nil {
		return VerificationResult{}, err
	}

	return e.compare(identityID, probe, ref.Template, at)
}

// Identify finds the enrolled identity closest to the sample. The index only
// proposes candidates; each is re-checked against the directory's current template.
// A sample that matches nobody yields Matched=false with an empty IdentityID.
func (e *Engine) Identify(ctx context.Context, sample []byte) (VerificationResult, error) {
	start := e.now()
	result, err := e.identify(ctx, sample, start)
	e.metrics.ObserveVerifyLatency(e.now().Sub(start))
	e.record(ctx, "identify", result.IdentityID, result, err)
	return result, err
}

func (e *Engine) identify(ctx context.Context, sample []byte, at time.Time) (VerificationResult, error) {
	if len(sample) == 0 {
		return VerificationResult{}, fmt.Errorf("%w: empty sample", ErrInvalidSample)
	}
	if e.index == nil || e.index.Count() == 0 {
		return VerificationResult{}, fmt.Errorf("%w: no identities enrolled", ErrIdentityNotFound)
	}

	probe, err := e.extract(ctx, sample)
	if err != nil {
		return VerificationResult{}, err
	}

	hits, err := e.index.Search(probe, database.HNSWCandidates)
	if err != nil {
		return VerificationResult{}, err
	}

	var best *VerificationResult
	for _, hit := range hits {
		ref, err := e.lookup(ctx, hit.IdentityID)
		if errors.Is(err, ErrIdentityNotFound) {
			// stale index entry
			continue
		}
		if err != nil {
			return VerificationResult{}, err
		}

		r, err := e.compare(hit.IdentityID, probe, ref.Template, at)
		if errors.Is(err, biometric.ErrDimensionMismatch) {
			e.logger.WarnContext(ctx, "skipping reference template with foreign dimension",
				"identity_id", hit.IdentityID, "dim", len(ref.Template))
			continue
		}
		if err != nil {
			return VerificationResult{}, err
		}
		if best == nil || r.Distance < best.Distance {
			best = &r
		}
	}

	if best == nil {
		return VerificationResult{}, fmt.Errorf("%w: no candidate in index", ErrIdentityNotFound)
	}
	if !best.Matched {
		best.IdentityID = ""
	}
	return *best, nil
}

func (e *Engine) extract(ctx context.Context, sample []byte) (biometric.Template, error) {
	start := e.now()
	t, err := e.extractor.Extract(ctx, sample)
	e.metrics.ObserveExtractLatency(e.now().Sub(start))
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("%w: extractor returned an empty template", biometric.ErrDimensionMismatch)
	}
	return t, nil
}

func (e *Engine) lookup(ctx context.Context, identityID string) (*database.ReferenceTemplate, error) {
	ref, err := e.directory.GetTemplate(ctx, identityID)
	switch {
	case errors.Is(err, database.ErrNotFound) || (err == nil && ref == nil):
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, identityID)
	case err != nil && isContextErr(err):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: template directory: %w", ErrUnavailable, err)
	}
	return ref, nil
}

func (e *Engine) compare(identityID string, probe, ref biometric.Template, at time.Time) (VerificationResult, error) {
	d, err := biometric.Distance(probe, ref)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("compare with reference of %s: %w", identityID, err)
	}
	e.metrics.ObserveDistance(d)

	return VerificationResult{
		IdentityID: identityID,
		Matched:    biometric.IsMatch(d, e.threshold),
		Distance:   d,
		Threshold:  e.threshold,
		Timestamp:  at,
	}, nil
}

func (e *Engine) record(ctx context.Context, op, identityID string, r VerificationResult, err error) {
	if err != nil {
		kind := KindOf(err)
		e.metrics.IncrementVerify(string(kind))
		if kind.IsInput() {
			e.logger.DebugContext(ctx, op+" rejected", "identity_id", identityID, "kind", kind, "error", err)
		} else {
			e.logger.ErrorContext(ctx, op+" failed", "identity_id", identityID, "kind", kind, "error", err)
		}
		return
	}

	outcome := "match"
	if !r.Matched {
		outcome = "no_match"
	}
	e.metrics.IncrementVerify(outcome)
	e.logger.DebugContext(ctx, op+" completed",
		"identity_id", r.IdentityID,
		"matched", r.Matched,
		"distance", r.Distance,
		"threshold", r.Threshold,
	)
}

// firstError applies the fixed precedence: caller cancellation, then the extractor
// error, then the directory error. A side cancelled by errgroup because the other
// side failed does not mask the real failure.
func firstError(ctx context.Context, extractErr, lookupErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case extractErr != nil && !isContextErr(extractErr):
		return extractErr
	case lookupErr != nil && !isContextErr(lookupErr):
		return lookupErr
	case extractErr != nil:
		return extractErr
	default:
		return lookupErr
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

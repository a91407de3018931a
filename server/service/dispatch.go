package service

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/pushgate/pushgate/server/contexts/ctxerr"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
)

// Warning texts used in dispatch outcomes.
const (
	warningVariantDisabled  = "variant is disabled"
	warningNoCredentials    = "variant has no usable push credentials"
	warningTransportFailure = "push provider transport failure"
)

// Dispatch resolves the recipients of a variant, builds and submits the
// payload, and schedules cleanup of endpoints the provider reported invalid.
//
// Only caller-input problems surface as errors. Conditions the caller cannot
// correct by changing the request (unknown variant, missing credentials,
// provider outage) degrade to an empty or warning outcome so that one broken
// variant does not fail a broadcast over its siblings.
func (svc *Service) Dispatch(ctx context.Context, variantID string, criteria *pushgate.Criteria, message *pushgate.Message) (*pushgate.DispatchOutcome, error) {
	outcome := &pushgate.DispatchOutcome{
		DispatchID: uuid.New().String(),
		VariantID:  variantID,
	}

	variant, err := svc.ds.VariantByVariantID(ctx, variantID)
	switch {
	case pushgate.IsNotFound(err):
		level.Debug(svc.logger).Log("msg", "dispatch to unknown variant", "variant_id", variantID)
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusEmpty).Inc()
		return outcome, nil
	case err != nil:
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusError).Inc()
		return nil, ctxerr.Wrap(ctx, err, "load variant")
	}

	if !variant.Enabled {
		outcome.Warning = warningVariantDisabled
		level.Info(svc.logger).Log("msg", "dispatch to disabled variant", "variant_id", variantID)
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusWarning).Inc()
		return outcome, nil
	}

	endpoints, err := svc.ds.ListEndpointsByCriteria(ctx, variantID, criteria)
	if err != nil {
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusError).Inc()
		return nil, ctxerr.Wrap(ctx, err, "resolve endpoints")
	}
	outcome.EndpointCount = len(endpoints)
	svc.metrics.ResolvedEndpoints.Add(float64(len(endpoints)))

	if len(endpoints) == 0 {
		level.Debug(svc.logger).Log("msg", "criteria resolved no endpoints", "variant_id", variantID, "dispatch_id", outcome.DispatchID)
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusEmpty).Inc()
		return outcome, nil
	}

	sender, err := svc.registry.SenderFor(variant)
	if err != nil {
		if ctxerr.Cause(err) == push.ErrNoCredentials {
			outcome.Warning = warningNoCredentials
			level.Info(svc.logger).Log(
				"msg", "dispatch skipped, no usable credentials",
				"variant_id", variantID,
				"variant_type", variant.Type,
				"err", err,
			)
			svc.metrics.Dispatches.WithLabelValues(DispatchStatusWarning).Inc()
			return outcome, nil
		}
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusError).Inc()
		return nil, ctxerr.Wrap(ctx, err, "build sender")
	}

	resp, err := sender.Send(ctx, endpoints, message)
	if err != nil {
		if pushgate.IsInvalidArgument(err) {
			// Payload problems are the caller's to fix.
			svc.metrics.Dispatches.WithLabelValues(DispatchStatusError).Inc()
			return nil, err
		}
		outcome.Warning = warningTransportFailure
		level.Error(svc.logger).Log(
			"msg", "push provider transport failure",
			"variant_id", variantID,
			"dispatch_id", outcome.DispatchID,
			"endpoints", len(endpoints),
			"err", err,
		)
		svc.metrics.Dispatches.WithLabelValues(DispatchStatusWarning).Inc()
		return outcome, nil
	}

	if len(resp.InvalidEndpoints) > 0 {
		svc.reaper.Enqueue(variantID, resp.InvalidEndpoints)
		outcome.CleanupScheduled = true
	}

	level.Debug(svc.logger).Log(
		"msg", "dispatch submitted",
		"variant_id", variantID,
		"dispatch_id", outcome.DispatchID,
		"endpoints", len(endpoints),
		"invalid", len(resp.InvalidEndpoints),
	)
	svc.metrics.Dispatches.WithLabelValues(DispatchStatusSent).Inc()
	return outcome, nil
}

// DispatchToApplication fans one message out to several variants. Each
// variant is dispatched concurrently with its own transport session; outcomes
// come back in the order of variantIDs. A variant that fails, even on a
// caller-input error, yields an outcome with a warning rather than failing
// the whole fan-out.
func (svc *Service) DispatchToApplication(ctx context.Context, variantIDs []string, criteria *pushgate.Criteria, message *pushgate.Message) ([]*pushgate.DispatchOutcome, error) {
	outcomes := make([]*pushgate.DispatchOutcome, len(variantIDs))

	var wg sync.WaitGroup
	for i, variantID := range variantIDs {
		wg.Add(1)
		go func(i int, variantID string) {
			defer wg.Done()
			outcome, err := svc.Dispatch(ctx, variantID, criteria, message)
			if err != nil {
				outcome = &pushgate.DispatchOutcome{
					VariantID: variantID,
					Warning:   err.Error(),
				}
			}
			outcomes[i] = outcome
		}(i, variantID)
	}
	wg.Wait()

	return outcomes, nil
}

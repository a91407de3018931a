package service

import (
	"context"
	"testing"

	"github.com/WatchBeam/clock"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/server/datastore/inmem"
	"github.com/pushgate/pushgate/server/push"
	"github.com/pushgate/pushgate/server/pushgate"
)

type fakeSender struct {
	sends    [][]string
	response *push.Response
	err      error
}

func (f *fakeSender) Send(ctx context.Context, endpoints []string, message *pushgate.Message) (*push.Response, error) {
	f.sends = append(f.sends, endpoints)
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &push.Response{}, nil
}

type testEnv struct {
	ds      *inmem.Datastore
	svc     *Service
	reaper  *Reaper
	senders map[pushgate.VariantType]*fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	ds := inmem.New(clock.NewMockClock())
	logger := log.NewNopLogger()

	senders := map[pushgate.VariantType]*fakeSender{
		pushgate.VariantTypeIOS:     {},
		pushgate.VariantTypeAndroid: {},
	}

	registry := push.NewRegistry()
	for variantType, sender := range senders {
		sender := sender
		registry.Register(variantType, func(variant *pushgate.Variant) (push.Sender, error) {
			return sender, nil
		})
	}

	reaper := NewReaper(ds, logger)
	svc := NewService(ds, registry, reaper, logger, WithClock(clock.NewMockClock()))
	return &testEnv{ds: ds, svc: svc, reaper: reaper, senders: senders}
}

func (env *testEnv) seedVariant(t *testing.T, variantType pushgate.VariantType, enabled bool) *pushgate.Variant {
	variant, err := env.ds.NewVariant(context.Background(), &pushgate.Variant{
		Name:    "app " + string(variantType),
		Enabled: enabled,
		Type:    variantType,
	})
	require.NoError(t, err)
	return variant
}

func (env *testEnv) seedInstallation(t *testing.T, variantID, endpointID string) {
	_, err := env.ds.NewInstallation(context.Background(), &pushgate.Installation{
		VariantID:  variantID,
		EndpointID: endpointID,
		Enabled:    true,
	})
	require.NoError(t, err)
}

func TestDispatchUnknownVariant(t *testing.T) {
	env := newTestEnv(t)

	outcome, err := env.svc.Dispatch(context.Background(), "no-such-variant", nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "no-such-variant", outcome.VariantID)
	assert.Zero(t, outcome.EndpointCount)
	assert.Empty(t, outcome.Warning)
	assert.Empty(t, env.senders[pushgate.VariantTypeIOS].sends)
}

func TestDispatchDisabledVariant(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, false)
	env.seedInstallation(t, variant.VariantID, "tok1")

	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, warningVariantDisabled, outcome.Warning)
	assert.Empty(t, env.senders[pushgate.VariantTypeIOS].sends)
}

func TestDispatchNoRecipientsSkipsSender(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")

	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID,
		&pushgate.Criteria{Aliases: []string{"nobody@example.com"}},
		&pushgate.Message{Alert: "hi"},
	)
	require.NoError(t, err)
	assert.Zero(t, outcome.EndpointCount)
	assert.Empty(t, outcome.Warning)
	// No transport session is opened when nothing resolved.
	assert.Empty(t, env.senders[pushgate.VariantTypeIOS].sends)
}

func TestDispatchNoCredentialsWarning(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeSimplePush, true)
	env.seedInstallation(t, variant.VariantID, "http://push.example.com/ch1")

	// No factory registered for simplepush in this environment, which is the
	// same outcome as a variant without credential material.
	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, warningNoCredentials, outcome.Warning)
	assert.Equal(t, 1, outcome.EndpointCount)
}

func TestDispatchCredentialFactoryWarning(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")

	env.svc.registry.Register(pushgate.VariantTypeIOS, func(variant *pushgate.Variant) (push.Sender, error) {
		return nil, errors.Wrap(push.ErrNoCredentials, "empty certificate")
	})

	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, warningNoCredentials, outcome.Warning)
}

func TestDispatchTransportFailureWarning(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")
	env.senders[pushgate.VariantTypeIOS].err = errors.New("http2: connection reset")

	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, warningTransportFailure, outcome.Warning)
	assert.False(t, outcome.CleanupScheduled)

	// The installation survives a transport failure.
	_, err = env.ds.InstallationByEndpoint(context.Background(), variant.VariantID, "tok1")
	require.NoError(t, err)
}

func TestDispatchPayloadErrorSurfaces(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")
	env.senders[pushgate.VariantTypeIOS].err = pushgate.NewInvalidArgumentError("data", `reserved key "aps" in custom data`)

	_, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.Error(t, err)
	assert.True(t, pushgate.IsInvalidArgument(err))
}

func TestDispatchReapsInvalidEndpoints(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")
	env.seedInstallation(t, variant.VariantID, "tok2")
	env.senders[pushgate.VariantTypeIOS].response = &push.Response{InvalidEndpoints: []string{"tok2"}}

	outcome, err := env.svc.Dispatch(context.Background(), variant.VariantID, nil, &pushgate.Message{Alert: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.EndpointCount)
	assert.True(t, outcome.CleanupScheduled)

	env.reaper.Close()

	_, err = env.ds.InstallationByEndpoint(context.Background(), variant.VariantID, "tok1")
	require.NoError(t, err)
	_, err = env.ds.InstallationByEndpoint(context.Background(), variant.VariantID, "tok2")
	assert.True(t, pushgate.IsNotFound(err))
}

func TestDispatchToApplicationIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	iosVariant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	androidVariant := env.seedVariant(t, pushgate.VariantTypeAndroid, true)
	env.seedInstallation(t, iosVariant.VariantID, "tok1")
	env.seedInstallation(t, androidVariant.VariantID, "reg1")
	env.senders[pushgate.VariantTypeIOS].err = errors.New("gateway timeout")

	outcomes, err := env.svc.DispatchToApplication(context.Background(),
		[]string{iosVariant.VariantID, androidVariant.VariantID},
		nil, &pushgate.Message{Alert: "hi"},
	)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, warningTransportFailure, outcomes[0].Warning)
	assert.Empty(t, outcomes[1].Warning)
	assert.Equal(t, [][]string{{"reg1"}}, env.senders[pushgate.VariantTypeAndroid].sends)
}

func TestReaperIdempotent(t *testing.T) {
	env := newTestEnv(t)
	variant := env.seedVariant(t, pushgate.VariantTypeIOS, true)
	env.seedInstallation(t, variant.VariantID, "tok1")

	env.reaper.Enqueue(variant.VariantID, []string{"tok1"})
	env.reaper.Enqueue(variant.VariantID, []string{"tok1"})
	env.reaper.Enqueue(variant.VariantID, nil)
	env.reaper.Close()

	_, err := env.ds.InstallationByEndpoint(context.Background(), variant.VariantID, "tok1")
	assert.True(t, pushgate.IsNotFound(err))
}

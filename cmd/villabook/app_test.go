package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/infra/config"
	"villabook/internal/infra/gateway"
)

func discardRuntime() *runtime {
	return &runtime{logger: slog.New(slog.DiscardHandler)}
}

func TestBuildGatewayStripeProductionHasNoSandbox(t *testing.T) {
	cfg := config.Config{
		Env:              "prod",
		PaymentProvider:  config.ProviderStripe,
		StripeSecretKey:  "sk_live_x",
		StripeWebhookKey: "whsec_x",
	}
	gw, decoders, err := buildGateway(cfg, discardRuntime())
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderStripe, gw.Provider())
	assert.Contains(t, decoders, gateway.ProviderStripe)
	assert.NotContains(t, decoders, gateway.ProviderSandbox)
	assert.NotContains(t, decoders, gateway.ProviderSnap)
	assert.Equal(t, gateway.ProviderSnap, notificationProvider(cfg), "generic route has no decoder to fall back to")
}

func TestBuildGatewaySandboxOnlyInDev(t *testing.T) {
	cfg := config.Config{Env: "dev", PaymentProvider: config.ProviderSandbox}
	gw, decoders, err := buildGateway(cfg, discardRuntime())
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderSandbox, gw.Provider())
	assert.Contains(t, decoders, gateway.ProviderSandbox)
	assert.Equal(t, gateway.ProviderSandbox, notificationProvider(cfg))

	cfg.Env = "prod"
	_, _, err = buildGateway(cfg, discardRuntime())
	assert.Error(t, err)
	assert.Equal(t, gateway.ProviderSnap, notificationProvider(cfg))
}

func TestBuildGatewaySnapKeepsRealDecoder(t *testing.T) {
	cfg := config.Config{Env: "prod", PaymentProvider: config.ProviderSnap, SnapServerKey: "server-key"}
	gw, decoders, err := buildGateway(cfg, discardRuntime())
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderSnap, gw.Provider())
	assert.Contains(t, decoders, gateway.ProviderSnap)
	assert.NotContains(t, decoders, gateway.ProviderSandbox)
	assert.Equal(t, gateway.ProviderSnap, notificationProvider(cfg))
}

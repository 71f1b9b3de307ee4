package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

func init() {
	Register(Info{
		Type:           "vault",
		Description:    "HashiCorp Vault KV v2, one secret per namespace",
		Factory:        newVault,
		RequiredFields: []string{"address"},
		OptionalFields: []string{"token", "mount", "namespace"},
	})
}

type vaultProvider struct {
	kv *vault.KVv2
}

func newVault(cfg Config) (Provider, error) {
	address := cfg.String("address")
	if address == "" {
		return nil, fmt.Errorf("%w: vault requires address", ErrNotConfigured)
	}

	vcfg := vault.DefaultConfig()
	vcfg.Address = address
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("init vault client: %w", err)
	}

	token := os.Getenv("VAULT_TOKEN")
	if t := cfg.String("token"); t != "" {
		token = t
	}
	if token != "" {
		client.SetToken(token)
	}
	if ns := cfg.String("namespace"); ns != "" {
		client.SetNamespace(ns)
	}

	mount := "secret"
	if m := cfg.String("mount"); m != "" {
		mount = m
	}
	return &vaultProvider{kv: client.KVv2(mount)}, nil
}

// Pull returns the string fields of the namespace secret. Non-string
// fields are ignored.
func (p *vaultProvider) Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error) {
	values, err := p.read(ctx, ns)
	if err != nil {
		return nil, err
	}
	return sortedPairs(values), nil
}

func (p *vaultProvider) Push(ctx context.Context, ns Namespace, pairs []dotenv.Pair) error {
	path, err := ns.Path()
	if err != nil {
		return err
	}
	values, err := p.read(ctx, ns)
	if err != nil {
		return err
	}
	data := make(map[string]interface{}, len(values)+len(pairs))
	for k, v := range values {
		data[k] = v
	}
	for k, v := range envfile.Map(pairs) {
		data[k] = v
	}
	if _, err := p.kv.Put(ctx, path, data); err != nil {
		return fmt.Errorf("vault put %s: %w", path, err)
	}
	return nil
}

func (p *vaultProvider) read(ctx context.Context, ns Namespace) (map[string]string, error) {
	path, err := ns.Path()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	secret, err := p.kv.Get(ctx, path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return values, nil
		}
		return nil, fmt.Errorf("vault get %s: %w", path, err)
	}
	for k, v := range secret.Data {
		if s, ok := v.(string); ok && dotenv.ValidKey(k) {
			values[k] = s
		}
	}
	return values, nil
}

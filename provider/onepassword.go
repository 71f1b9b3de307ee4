package provider

import (
	"context"
	"fmt"
	"os"

	opconnect "github.com/1Password/connect-sdk-go/connect"
	"github.com/1Password/connect-sdk-go/onepassword"

	"github.com/binsquare/envline/dotenv"
)

func init() {
	Register(Info{
		Type:           "onepassword",
		Description:    "1Password Connect, one item per namespace with a field per key",
		Factory:        newOnePassword,
		RequiredFields: []string{"connect_host"},
		OptionalFields: []string{"connect_token", "vault_id", "vault"},
	})
}

type onePassword struct {
	client  opconnect.Client
	vaultID string
}

func newOnePassword(cfg Config) (Provider, error) {
	host := cfg.String("connect_host")
	if host == "" {
		return nil, fmt.Errorf("%w: onepassword requires connect_host", ErrNotConfigured)
	}
	token := os.Getenv("OP_CONNECT_TOKEN")
	if t := cfg.String("connect_token"); t != "" {
		token = t
	}
	if token == "" {
		return nil, fmt.Errorf("%w: onepassword requires OP_CONNECT_TOKEN env or connect_token in config", ErrNotConfigured)
	}
	client := opconnect.NewClient(host, token)

	vaultID := cfg.String("vault_id")
	if vaultID == "" {
		title := cfg.String("vault")
		if title == "" {
			title = "Private"
		}
		v, err := client.GetVaultByTitle(title)
		if err != nil {
			return nil, fmt.Errorf("resolve 1password vault %s: %w", title, err)
		}
		vaultID = v.ID
	}
	return &onePassword{client: client, vaultID: vaultID}, nil
}

// item returns the namespace item, or nil when it does not exist yet.
func (p *onePassword) item(ns Namespace) (*onepassword.Item, error) {
	title, err := ns.Path()
	if err != nil {
		return nil, err
	}
	matches, err := p.client.GetItemsByTitle(title, p.vaultID)
	if err != nil {
		return nil, fmt.Errorf("1password find %s: %w", title, err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("1password vault has %d items titled %q", len(matches), title)
	}
	item, err := p.client.GetItem(matches[0].ID, p.vaultID)
	if err != nil {
		return nil, fmt.Errorf("1password get %s: %w", title, err)
	}
	return item, nil
}

func (p *onePassword) Pull(_ context.Context, ns Namespace) ([]dotenv.Pair, error) {
	item, err := p.item(ns)
	if err != nil || item == nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, f := range item.Fields {
		if dotenv.ValidKey(f.Label) {
			values[f.Label] = f.Value
		}
	}
	return sortedPairs(values), nil
}

// Push updates matching fields in place and appends concealed fields for
// new keys.
func (p *onePassword) Push(_ context.Context, ns Namespace, pairs []dotenv.Pair) error {
	item, err := p.item(ns)
	if err != nil {
		return err
	}
	title, _ := ns.Path()
	create := item == nil
	if create {
		item = &onepassword.Item{
			Title:    title,
			Category: "SECURE_NOTE",
			Vault:    onepassword.ItemVault{ID: p.vaultID},
		}
	}

	byLabel := make(map[string]*onepassword.ItemField, len(item.Fields))
	for _, f := range item.Fields {
		byLabel[f.Label] = f
	}
	for _, pair := range pairs {
		if f, ok := byLabel[pair.Key]; ok {
			f.Value = pair.Value
			continue
		}
		f := &onepassword.ItemField{Label: pair.Key, Type: "CONCEALED", Value: pair.Value}
		item.Fields = append(item.Fields, f)
		byLabel[pair.Key] = f
	}

	if create {
		if _, err := p.client.CreateItem(item, p.vaultID); err != nil {
			return fmt.Errorf("1password create %s: %w", title, err)
		}
		return nil
	}
	if _, err := p.client.UpdateItem(item, p.vaultID); err != nil {
		return fmt.Errorf("1password update %s: %w", title, err)
	}
	return nil
}

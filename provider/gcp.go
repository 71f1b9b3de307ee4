package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	secretmanager "google.golang.org/api/secretmanager/v1"

	"github.com/binsquare/envline/dotenv"
)

func init() {
	Register(Info{
		Type:           "gcp-secretmanager",
		Description:    "Google Cloud Secret Manager, one secret per key",
		Factory:        newGCPSecretManager,
		RequiredFields: []string{"project"},
		OptionalFields: []string{"credentials_file"},
	})
}

type gcpSecretManager struct {
	svc       *secretmanager.Service
	projectID string
}

func newGCPSecretManager(cfg Config) (Provider, error) {
	project := cfg.String("project")
	if project == "" {
		return nil, fmt.Errorf("%w: gcp-secretmanager requires project", ErrNotConfigured)
	}
	var opts []option.ClientOption
	if credFile := cfg.String("credentials_file"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}
	svc, err := secretmanager.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("init gcp secret manager: %w", err)
	}
	return &gcpSecretManager{svc: svc, projectID: project}, nil
}

// secretIDPrefix maps a namespace onto Secret Manager's flat id space,
// where '/' is not allowed: "/myapp/dev/" becomes "myapp_dev_".
func secretIDPrefix(ns Namespace) string {
	return strings.ReplaceAll(strings.TrimLeft(ns.Root(), "/"), "/", "_")
}

func (p *gcpSecretManager) parent() string {
	return "projects/" + p.projectID
}

func (p *gcpSecretManager) Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error) {
	prefix := secretIDPrefix(ns)
	values := make(map[string]string)
	req := p.svc.Projects.Secrets.List(p.parent())
	if prefix != "" {
		req = req.Filter("name:" + prefix)
	}
	err := req.Pages(ctx, func(page *secretmanager.ListSecretsResponse) error {
		for _, sec := range page.Secrets {
			id := sec.Name[strings.LastIndex(sec.Name, "/")+1:]
			key, ok := strings.CutPrefix(id, prefix)
			if !ok || !dotenv.ValidKey(key) {
				continue
			}
			value, err := p.access(ctx, sec.Name)
			if err != nil {
				return err
			}
			values[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gcp secret list: %w", err)
	}
	return sortedPairs(values), nil
}

func (p *gcpSecretManager) access(ctx context.Context, secretName string) (string, error) {
	version := secretName + "/versions/latest"
	resp, err := p.svc.Projects.Secrets.Versions.Access(version).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gcp secret get %s: %w", version, err)
	}
	if resp.Payload == nil {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode secret %s: %w", version, err)
	}
	return string(data), nil
}

// Push adds a new version for each key, creating missing secrets with
// automatic replication.
func (p *gcpSecretManager) Push(ctx context.Context, ns Namespace, pairs []dotenv.Pair) error {
	prefix := secretIDPrefix(ns)
	for _, pair := range pairs {
		id := prefix + pair.Key
		name := p.parent() + "/secrets/" + id
		if _, err := p.svc.Projects.Secrets.Get(name).Context(ctx).Do(); err != nil {
			if !isNotFound(err) {
				return fmt.Errorf("gcp secret get %s: %w", name, err)
			}
			_, err := p.svc.Projects.Secrets.Create(p.parent(), &secretmanager.Secret{
				Replication: &secretmanager.Replication{Automatic: &secretmanager.Automatic{}},
			}).SecretId(id).Context(ctx).Do()
			if err != nil {
				return fmt.Errorf("gcp secret create %s: %w", name, err)
			}
		}
		_, err := p.svc.Projects.Secrets.AddVersion(name, &secretmanager.AddSecretVersionRequest{
			Payload: &secretmanager.SecretPayload{
				Data: base64.StdEncoding.EncodeToString([]byte(pair.Value)),
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("gcp secret add version %s: %w", name, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

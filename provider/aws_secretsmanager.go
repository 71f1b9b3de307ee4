package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/binsquare/envline/dotenv"
	"github.com/binsquare/envline/envfile"
)

func init() {
	Register(Info{
		Type:           "aws-secretsmanager",
		Description:    "AWS Secrets Manager, one JSON secret per namespace",
		Factory:        newAWSSecretsManager,
		RequiredFields: []string{"region"},
		OptionalFields: []string{"profile"},
	})
}

type awsSecretsManager struct {
	cfg Config
}

func newAWSSecretsManager(cfg Config) (Provider, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: aws-secretsmanager missing region", ErrNotConfigured)
	}
	return &awsSecretsManager{cfg: cfg}, nil
}

func (p *awsSecretsManager) Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error) {
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}
	values, _, err := p.read(ctx, client, ns)
	if err != nil {
		return nil, err
	}
	return sortedPairs(values), nil
}

// Push merges pairs into the namespace secret, creating it on first use.
func (p *awsSecretsManager) Push(ctx context.Context, ns Namespace, pairs []dotenv.Pair) error {
	client, err := p.client(ctx)
	if err != nil {
		return err
	}
	values, exists, err := p.read(ctx, client, ns)
	if err != nil {
		return err
	}
	for k, v := range envfile.Map(pairs) {
		values[k] = v
	}
	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode secret: %w", err)
	}

	name, _ := ns.Path()
	if exists {
		_, err = client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(name),
			SecretString: aws.String(string(body)),
		})
	} else {
		_, err = client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name),
			SecretString: aws.String(string(body)),
			Description:  aws.String("envline namespace " + ns.String()),
		})
	}
	if err != nil {
		return fmt.Errorf("aws secrets put %s: %w", name, err)
	}
	return nil
}

// read returns the decoded namespace secret and whether it exists.
func (p *awsSecretsManager) read(ctx context.Context, client *secretsmanager.Client, ns Namespace) (map[string]string, bool, error) {
	name, err := ns.Path()
	if err != nil {
		return nil, false, err
	}
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return map[string]string{}, false, nil
		}
		return nil, false, fmt.Errorf("aws secrets get %s: %w", name, err)
	}

	raw := []byte(aws.ToString(out.SecretString))
	if out.SecretString == nil {
		raw = out.SecretBinary
	}
	values := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, true, fmt.Errorf("secret %s is not a JSON object of strings: %w", name, err)
		}
	}
	return values, true, nil
}

func (p *awsSecretsManager) client(ctx context.Context) (*secretsmanager.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

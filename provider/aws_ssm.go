package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/binsquare/envline/dotenv"
)

func init() {
	Register(Info{
		Type:           "aws-ssm",
		Description:    "AWS Systems Manager Parameter Store, one SecureString per key",
		Factory:        newAWSSSM,
		RequiredFields: []string{"region"},
		OptionalFields: []string{"profile"},
	})
}

type awsSSM struct {
	cfg Config
}

func newAWSSSM(cfg Config) (Provider, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: aws-ssm missing region", ErrNotConfigured)
	}
	return &awsSSM{cfg: cfg}, nil
}

// Pull reads the parameters directly under the namespace path. Nested
// parameters are skipped because their names are not env keys.
func (p *awsSSM) Pull(ctx context.Context, ns Namespace) ([]dotenv.Pair, error) {
	if ns.PathPrefix == "" {
		return nil, fmt.Errorf("%w: aws-ssm requires path_prefix", ErrNotConfigured)
	}
	client, err := p.client(ctx)
	if err != nil {
		return nil, err
	}

	root := ns.Root()
	values := make(map[string]string)
	pages := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(strings.TrimSuffix(root, "/")),
		WithDecryption: aws.Bool(true),
		Recursive:      aws.Bool(false),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws ssm list %s: %w", root, err)
		}
		for _, param := range out.Parameters {
			key, ok := ns.Unqualify(aws.ToString(param.Name))
			if !ok || !dotenv.ValidKey(key) {
				slog.Debug("skip parameter", "name", aws.ToString(param.Name))
				continue
			}
			values[key] = aws.ToString(param.Value)
		}
	}
	return sortedPairs(values), nil
}

func (p *awsSSM) Push(ctx context.Context, ns Namespace, pairs []dotenv.Pair) error {
	if ns.PathPrefix == "" {
		return fmt.Errorf("%w: aws-ssm requires path_prefix", ErrNotConfigured)
	}
	client, err := p.client(ctx)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		name := ns.Qualify(pair.Key)
		// Parameter Store rejects empty values.
		if pair.Value == "" {
			return fmt.Errorf("aws ssm put %s: empty values are not supported", name)
		}
		_, err := client.PutParameter(ctx, &ssm.PutParameterInput{
			Name:      aws.String(name),
			Value:     aws.String(pair.Value),
			Type:      types.ParameterTypeSecureString,
			Overwrite: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("aws ssm put %s: %w", name, err)
		}
	}
	return nil
}

func (p *awsSSM) client(ctx context.Context) (*ssm.Client, error) {
	awsCfg, err := loadAWSConfig(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(awsCfg), nil
}

package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// dynamoBatchLimit is BatchGetItem's per-call key limit.
const dynamoBatchLimit = 100

// DynamoAPI is the subset of *dynamodb.Client used here.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

// dynamoProfile is the item shape of the UserProfiles table.
type dynamoProfile struct {
	UserID    string            `dynamodbav:"userId"`
	Location  string            `dynamodbav:"location,omitempty"`
	Budget    int               `dynamodbav:"budget,omitempty"`
	Age       int               `dynamodbav:"age,omitempty"`
	Lifestyle map[string]string `dynamodbav:"lifestyle,omitempty"`
	Interests []string          `dynamodbav:"interests,omitempty"`
}

func (d dynamoProfile) profile() matching.Profile {
	return normalize(matching.Profile{
		ID:        d.UserID,
		Location:  d.Location,
		Budget:    d.Budget,
		Age:       d.Age,
		Lifestyle: d.Lifestyle,
		Interests: d.Interests,
	})
}

// DynamoSource reads profiles from a DynamoDB table keyed by userId.
type DynamoSource struct {
	client DynamoAPI
	table  string
}

func NewDynamoSource(client DynamoAPI, table string) *DynamoSource {
	return &DynamoSource{client: client, table: table}
}

// NewDynamoClient loads the default AWS config for region.
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

func profileKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"userId": &types.AttributeValueMemberS{Value: id}}
}

func (s *DynamoSource) GetProfile(ctx context.Context, id string) (matching.Profile, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       profileKey(id),
	})
	if err != nil {
		return matching.Profile{}, dynamoErr("get profile", err)
	}
	if out.Item == nil {
		return matching.Profile{}, matching.ErrProfileNotFound
	}

	var item dynamoProfile
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return matching.Profile{}, fmt.Errorf("get profile: unmarshal %s: %w", id, err)
	}
	if item.UserID == "" {
		item.UserID = id
	}
	return item.profile(), nil
}

// GetProfiles issues BatchGetItem in chunks and re-requests unprocessed keys.
func (s *DynamoSource) GetProfiles(ctx context.Context, ids []string) (map[string]matching.Profile, error) {
	ids = dedupe(ids)
	out := make(map[string]matching.Profile, len(ids))

	for start := 0; start < len(ids); start += dynamoBatchLimit {
		end := min(start+dynamoBatchLimit, len(ids))
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, profileKey(id))
		}

		request := map[string]types.KeysAndAttributes{s.table: {Keys: keys}}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > 3 {
				return nil, &matching.StorageUnavailableError{Op: "get profiles", Err: errors.New("unprocessed keys remain")}
			}
			resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, dynamoErr("get profiles", err)
			}
			for _, raw := range resp.Responses[s.table] {
				var item dynamoProfile
				if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
					return nil, fmt.Errorf("get profiles: unmarshal: %w", err)
				}
				out[item.UserID] = item.profile()
			}
			request = resp.UnprocessedKeys
		}
	}
	return out, nil
}

// dynamoErr marks throttling and server-side failures as retryable.
func dynamoErr(op string, err error) error {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) ||
		errors.Is(err, context.DeadlineExceeded) {
		return &matching.StorageUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

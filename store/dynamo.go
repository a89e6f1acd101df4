package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/ffcs/internal/scope"
)

// DynamoAPI is the subset of the DynamoDB client used by the backend.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, opts ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// Dynamo is the DynamoDB Backend. Each collection is a table named
// "<Database>_<physical>" with the string hash key "_id". It implements
// Transactor through TransactWriteItems.
type Dynamo struct {
	client DynamoAPI
	config Config
}

// NewDynamo creates a DynamoDB backend on an existing client.
func NewDynamo(client DynamoAPI, config Config) *Dynamo {
	config.validate()
	return &Dynamo{client: client, config: config}
}

// OpenDynamo loads the default AWS configuration for region and creates a
// backend. A non-empty endpoint overrides the service endpoint (local
// DynamoDB).
func OpenDynamo(ctx context.Context, region, endpoint string, config Config) (*Dynamo, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", ErrConfiguration, err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamo(client, config), nil
}

// TableName returns the DynamoDB table backing a physical collection.
func (d *Dynamo) TableName(physical string) string {
	return d.config.Database + "_" + physical
}

// Ping lists at most one table.
func (d *Dynamo) Ping(ctx context.Context) error {
	_, err := d.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

// Close is a no-op; the SDK client holds no connection.
func (d *Dynamo) Close(context.Context) error {
	return nil
}

// Collection returns a handle to the named collection.
func (d *Dynamo) Collection(physical string, schema Schema) Collection {
	return &dynamoCollection{d: d, name: physical, table: d.TableName(physical), schema: schema}
}

// Atomic writes every op in one TransactWriteItems call. Each item is read
// consistently first to resolve array positions and to report whether the
// op changes it; Modified reflects that read.
func (d *Dynamo) Atomic(ctx context.Context, ops []WriteOp) ([]UpdateResult, error) {
	items := make([]types.TransactWriteItem, 0, len(ops))
	results := make([]UpdateResult, len(ops))
	for i, op := range ops {
		table := d.TableName(op.Collection)
		key := idKey(op.ID)

		out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(table),
			Key:            key,
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		if out.Item == nil {
			return nil, fmt.Errorf("%w: op %d on %s/%s", ErrConditionFailed, i, op.Collection, op.ID)
		}
		current := fromItem(out.Item)
		elemIndex := -1
		if op.Update.Elem != nil {
			if elemIndex = op.Update.Elem.elemIndex(current); elemIndex < 0 {
				return nil, fmt.Errorf("%w: op %d on %s/%s", ErrConditionFailed, i, op.Collection, op.ID)
			}
		}
		results[i].Matched = 1
		if applyUpdate(current, op.Update) {
			results[i].Modified = 1
		}

		b := newExprBuilder()
		guard, err := b.condition(op.Guard)
		if err != nil {
			return nil, err
		}
		set, elemCond, err := b.update(op.Update, elemIndex)
		if err != nil {
			return nil, err
		}
		cond := joinConditions(fmt.Sprintf("attribute_exists(%s)", b.name(IDField)), guard, elemCond)

		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(table),
				Key:                       key,
				UpdateExpression:          aws.String(set),
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  b.namesOrNil(),
				ExpressionAttributeValues: b.valuesOrNil(),
			},
		})
	}

	_, err := d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err := mapTransactionError(err); err != nil {
		return nil, err
	}
	return results, nil
}

// mapTransactionError maps a cancelled transaction to ErrConditionFailed.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: transaction item %d", ErrConditionFailed, i)
			}
		}
	}
	return err
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		IDField: &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailure(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

type dynamoCollection struct {
	d      *Dynamo
	name   string
	table  string
	schema Schema
}

func (c *dynamoCollection) Name() string { return c.name }

func (c *dynamoCollection) InsertOne(ctx context.Context, doc Doc) (string, error) {
	dd := doc.Clone()
	if dd == nil {
		dd = Doc{}
	}
	if field, err := c.schema.Check(dd); err != nil {
		return "", &SchemaViolationError{Collection: c.name, Field: field, Doc: doc, Err: err}
	}
	id := dd.ID()
	if id == "" {
		id = uuid.NewString()
		dd[IDField] = id
	}

	item, err := toItem(dd)
	if err != nil {
		return "", err
	}
	user, _ := dd["userAccount"].(string)
	campaign, _ := dd["campaignId"].(string)
	if user != "" && campaign != "" {
		item[scopeAttr] = &types.AttributeValueMemberS{
			Value: scope.Key(user, campaign, id, c.d.config.ScopeShards),
		}
	}

	_, err = c.d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": IDField},
	})
	if isConditionFailure(err) {
		return "", fmt.Errorf("%w: %s/%s", ErrConflict, c.name, id)
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *dynamoCollection) FindOne(ctx context.Context, f Filter) (Doc, error) {
	docs, err := c.Find(ctx, f, Limit(1))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (c *dynamoCollection) Find(ctx context.Context, f Filter, opts ...FindOption) ([]Doc, error) {
	docs, err := c.fetch(ctx, f)
	if err != nil {
		return nil, err
	}
	return applyFindOptions(docs, collectFindOptions(opts)), nil
}

// fetch reads every matching item. Filters addressing one id use GetItem,
// filters on userAccount and campaignId use the scope index when one is
// configured, and everything else scans.
func (c *dynamoCollection) fetch(ctx context.Context, f Filter) ([]Doc, error) {
	if id, ok := f.idOf(); ok {
		out, err := c.d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(c.table),
			Key:            idKey(id),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, err
		}
		if out.Item == nil {
			return nil, nil
		}
		doc := fromItem(out.Item)
		if !f.Matches(doc) {
			return nil, nil
		}
		return []Doc{doc}, nil
	}

	if c.d.config.ScopeIndex != "" {
		user, hasUser := f.eqValue("userAccount")
		campaign, hasCampaign := f.eqValue("campaignId")
		u, uok := user.(string)
		cp, cok := campaign.(string)
		if hasUser && hasCampaign && uok && cok {
			return c.queryScope(ctx, u, cp, f)
		}
	}
	return c.scan(ctx, f)
}

func (c *dynamoCollection) scan(ctx context.Context, f Filter) ([]Doc, error) {
	b := newExprBuilder()
	expr, err := b.condition(f)
	if err != nil {
		return nil, err
	}
	input := &dynamodb.ScanInput{
		TableName:      aws.String(c.table),
		ConsistentRead: aws.Bool(true),
	}
	if expr != "" {
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = b.namesOrNil()
		input.ExpressionAttributeValues = b.valuesOrNil()
	}

	var docs []Doc
	paginator := dynamodb.NewScanPaginator(c.d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			docs = append(docs, fromItem(raw))
		}
	}
	return docs, nil
}

// queryScope fans out one Query per scope shard and merges the results.
func (c *dynamoCollection) queryScope(ctx context.Context, user, campaign string, f Filter) ([]Doc, error) {
	keys := scope.Keys(user, campaign, c.d.config.ScopeShards)
	if len(keys) == 1 {
		return c.queryShard(ctx, keys[0], f)
	}

	var mu sync.Mutex
	var all []Doc
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			docs, err := c.queryShard(ctx, key, f)
			if err != nil {
				errs <- fmt.Errorf("shard %s: %w", key, err)
				return
			}
			mu.Lock()
			all = append(all, docs...)
			mu.Unlock()
		}(key)
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

func (c *dynamoCollection) queryShard(ctx context.Context, key string, f Filter) ([]Doc, error) {
	b := newExprBuilder()
	expr, err := b.condition(f)
	if err != nil {
		return nil, err
	}
	sk, err := b.value(key)
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(c.table),
		IndexName:                 aws.String(c.d.config.ScopeIndex),
		KeyConditionExpression:    aws.String(fmt.Sprintf("%s = %s", b.name(scopeAttr), sk)),
		ExpressionAttributeNames:  b.namesOrNil(),
		ExpressionAttributeValues: b.valuesOrNil(),
	}
	if expr != "" {
		input.FilterExpression = aws.String(expr)
	}

	var docs []Doc
	paginator := dynamodb.NewQueryPaginator(c.d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			docs = append(docs, fromItem(raw))
		}
	}
	return docs, nil
}

func (c *dynamoCollection) Count(ctx context.Context, f Filter) (int64, error) {
	docs, err := c.fetch(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (c *dynamoCollection) UpdateOne(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	return c.update(ctx, f, u, false)
}

func (c *dynamoCollection) UpdateMany(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	return c.update(ctx, f, u, true)
}

// update resolves candidates with a read and then writes each one with the
// filter as its ConditionExpression, so a document that left the filtered
// state in between is skipped rather than overwritten.
func (c *dynamoCollection) update(ctx context.Context, f Filter, u Update, many bool) (UpdateResult, error) {
	var res UpdateResult
	candidates, err := c.fetch(ctx, f)
	if err != nil {
		return res, err
	}
	for _, doc := range candidates {
		elemIndex := -1
		if u.Elem != nil {
			if elemIndex = u.Elem.elemIndex(doc); elemIndex < 0 {
				continue
			}
		}
		modified, err := c.updateItem(ctx, doc.ID(), f, u, elemIndex)
		if isConditionFailure(err) {
			continue
		}
		if err != nil {
			return res, err
		}
		res.Matched++
		if modified {
			res.Modified++
		}
		if !many {
			break
		}
	}
	return res, nil
}

func (c *dynamoCollection) updateItem(ctx context.Context, id string, f Filter, u Update, elemIndex int) (bool, error) {
	b := newExprBuilder()
	guard, err := b.condition(f)
	if err != nil {
		return false, err
	}
	set, elemCond, err := b.update(u, elemIndex)
	if err != nil {
		return false, err
	}
	cond := joinConditions(fmt.Sprintf("attribute_exists(%s)", b.name(IDField)), guard, elemCond)

	out, err := c.d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(set),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  b.namesOrNil(),
		ExpressionAttributeValues: b.valuesOrNil(),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	before := fromItem(out.Attributes)
	after := before.Clone()
	return applyUpdate(after, u), nil
}

func (c *dynamoCollection) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	docs, err := c.fetch(ctx, f)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range docs {
		_, err := c.d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.table),
			Key:       idKey(doc.ID()),
		})
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// codeDocumentValidationFailure is the server error code for a $jsonSchema
// rejection.
const codeDocumentValidationFailure = 121

// Mongo is the MongoDB Backend. It implements Transactor (replica sets
// only) and SchemaInstaller.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo creates a MongoDB client for uri. The driver connects lazily;
// use Store.Open to check reachability.
func OpenMongo(uri string, config Config) (*Mongo, error) {
	config.validate()
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(config.ServerSelectionTimeout)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return &Mongo{client: client, db: client.Database(config.Database)}, nil
}

// Ping pings the primary.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Collection returns a handle to the named collection.
func (m *Mongo) Collection(physical string, _ Schema) Collection {
	return &mongoCollection{coll: m.db.Collection(physical)}
}

// EnsureSchema installs a $jsonSchema validator on the collection, creating
// the collection when it does not exist.
func (m *Mongo) EnsureSchema(ctx context.Context, physical string, schema Schema) error {
	validator := bson.M{"$jsonSchema": jsonSchema(schema)}

	names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: physical}})
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return m.db.CreateCollection(ctx, physical, options.CreateCollection().SetValidator(validator))
	}
	return m.db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: physical},
		{Key: "validator", Value: validator},
	}).Err()
}

// Atomic runs ops inside a session transaction. A guard that matches
// nothing aborts the transaction.
func (m *Mongo) Atomic(ctx context.Context, ops []WriteOp) ([]UpdateResult, error) {
	sess, err := m.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		results := make([]UpdateResult, len(ops))
		for i, op := range ops {
			filter, update, err := mongoUpdate(And(ByID(op.ID), op.Guard), op.Update)
			if err != nil {
				return nil, err
			}
			res, err := m.db.Collection(op.Collection).UpdateOne(ctx, filter, update)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, fmt.Errorf("%w: op %d on %s/%s", ErrConditionFailed, i, op.Collection, op.ID)
			}
			results[i] = UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]UpdateResult), nil
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.coll.Name() }

func (c *mongoCollection) InsertOne(ctx context.Context, doc Doc) (string, error) {
	d := doc.Clone()
	if d == nil {
		d = Doc{}
	}
	if id, ok := d[IDField].(string); ok && id != "" {
		d[IDField] = idValue(id)
	} else {
		delete(d, IDField)
	}
	res, err := c.coll.InsertOne(ctx, d)
	if err != nil {
		return "", c.mapWriteError(err, doc)
	}
	return idString(res.InsertedID), nil
}

func (c *mongoCollection) FindOne(ctx context.Context, f Filter) (Doc, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, mongoFilter(f)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(raw), nil
}

func (c *mongoCollection) Find(ctx context.Context, f Filter, opts ...FindOption) ([]Doc, error) {
	fo := collectFindOptions(opts)
	findOptions := options.Find()
	if len(fo.sort) > 0 {
		sortDoc := bson.D{}
		for _, k := range fo.sort {
			order := 1
			if k.Desc {
				order = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: k.Field, Value: order})
		}
		findOptions.SetSort(sortDoc)
	}
	if fo.limit > 0 {
		findOptions.SetLimit(fo.limit)
	}

	cursor, err := c.coll.Find(ctx, mongoFilter(f), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]Doc, len(raw))
	for i := range raw {
		docs[i] = fromBSON(raw[i])
	}
	return docs, nil
}

func (c *mongoCollection) Count(ctx context.Context, f Filter) (int64, error) {
	return c.coll.CountDocuments(ctx, mongoFilter(f))
}

func (c *mongoCollection) UpdateOne(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	filter, update, err := mongoUpdate(f, u)
	if err != nil {
		return UpdateResult{}, err
	}
	res, err := c.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, c.mapWriteError(err, u.Set)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, f Filter, u Update) (UpdateResult, error) {
	filter, update, err := mongoUpdate(f, u)
	if err != nil {
		return UpdateResult{}, err
	}
	res, err := c.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, c.mapWriteError(err, u.Set)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, mongoFilter(f))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) mapWriteError(err error, doc Doc) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s: %v", ErrConflict, c.Name(), err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(codeDocumentValidationFailure) {
		return &SchemaViolationError{Collection: c.Name(), Doc: doc, Err: err}
	}
	return err
}

// mongoUpdate builds the filter and $set document for u. Positional
// element updates add the element match to the filter and use "arr.$.field".
func mongoUpdate(f Filter, u Update) (bson.D, bson.D, error) {
	set := bson.D{}
	for _, k := range sortedKeys(u.Set) {
		set = append(set, bson.E{Key: k, Value: toBSON(Normalize(u.Set[k]))})
	}
	if u.Elem != nil {
		f = And(f, Eq(u.Elem.Array+"."+u.Elem.MatchField, u.Elem.MatchValue))
		set = append(set, bson.E{
			Key:   u.Elem.Array + ".$." + u.Elem.Field,
			Value: toBSON(Normalize(u.Elem.Value)),
		})
	}
	if len(set) == 0 {
		return nil, nil, errors.New("empty update")
	}
	return mongoFilter(f), bson.D{{Key: "$set", Value: set}}, nil
}

// mongoFilter translates a Filter into a query document.
func mongoFilter(f Filter) bson.D {
	switch f.op {
	case opEq:
		if f.field == IDField {
			if id, ok := f.value.(string); ok {
				return bson.D{{Key: IDField, Value: bson.M{"$in": idCandidates(id)}}}
			}
		}
		return bson.D{{Key: f.field, Value: toBSON(f.value)}}
	case opNe:
		return bson.D{{Key: f.field, Value: bson.M{"$ne": toBSON(f.value)}}}
	case opGte:
		return bson.D{{Key: f.field, Value: bson.M{"$gte": toBSON(f.value)}}}
	case opIn:
		values := make(bson.A, len(f.values))
		for i, v := range f.values {
			values[i] = toBSON(v)
		}
		return bson.D{{Key: f.field, Value: bson.M{"$in": values}}}
	case opNull:
		return bson.D{{Key: f.field, Value: nil}}
	case opAnd, opOr:
		if len(f.children) == 0 {
			if f.op == opOr {
				// $or needs at least one clause; an empty Or matches nothing.
				return bson.D{{Key: IDField, Value: bson.M{"$in": bson.A{}}}}
			}
			return bson.D{}
		}
		clauses := make(bson.A, len(f.children))
		for i, c := range f.children {
			clauses[i] = mongoFilter(c)
		}
		key := "$and"
		if f.op == opOr {
			key = "$or"
		}
		return bson.D{{Key: key, Value: clauses}}
	}
	return bson.D{}
}

// idValue stores ids that look like ObjectIDs as ObjectIDs, matching
// documents written by other clients of the same database.
func idValue(id string) any {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func idCandidates(id string) bson.A {
	if oid, err := bson.ObjectIDFromHex(id); err == nil {
		return bson.A{oid, id}
	}
	return bson.A{id}
}

func idString(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	}
	return fmt.Sprint(v)
}

// toBSON converts normalized values into driver values.
func toBSON(v any) any {
	switch x := v.(type) {
	case Doc:
		out := bson.M{}
		for k, val := range x {
			out[k] = toBSON(val)
		}
		return out
	case []any:
		out := make(bson.A, len(x))
		for i, val := range x {
			out[i] = toBSON(val)
		}
		return out
	}
	return v
}

// fromBSON converts a decoded document into a normalized Doc.
func fromBSON(raw bson.M) Doc {
	out := make(Doc, len(raw))
	for k, v := range raw {
		out[k] = fromBSONValue(v)
	}
	if id, ok := raw[IDField]; ok {
		out[IDField] = idString(id)
	}
	return out
}

func fromBSONValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC()
	case bson.Decimal128:
		return val.String()
	case int32:
		return int64(val)
	case bson.M:
		return fromBSON(val)
	case bson.D:
		m := bson.M{}
		for _, elem := range val {
			m[elem.Key] = elem.Value
		}
		return fromBSON(m)
	case bson.A:
		arr := make([]any, len(val))
		for i, item := range val {
			arr[i] = fromBSONValue(item)
		}
		return arr
	case map[string]any:
		return fromBSON(bson.M(val))
	case []any:
		arr := make([]any, len(val))
		for i, item := range val {
			arr[i] = fromBSONValue(item)
		}
		return arr
	case time.Time:
		return val.UTC()
	}
	return v
}

// jsonSchema renders a Schema as a $jsonSchema document.
func jsonSchema(s Schema) bson.M {
	required := make(bson.A, 0, len(s.Required))
	properties := bson.M{}
	for _, f := range s.Required {
		required = append(required, f.Name)
		prop := bson.M{"description": fmt.Sprintf("%s is required", f.Name)}
		switch f.Type {
		case TypeString:
			prop["bsonType"] = "string"
			prop["minLength"] = 1
		case TypeInt:
			prop["bsonType"] = bson.A{"int", "long"}
		case TypeNumber:
			prop["bsonType"] = bson.A{"int", "long", "double", "decimal"}
		case TypeBool:
			prop["bsonType"] = "bool"
		case TypeTime:
			prop["bsonType"] = "date"
		}
		properties[f.Name] = prop
	}
	if len(required) == 0 {
		return bson.M{"bsonType": "object"}
	}
	return bson.M{
		"bsonType":   "object",
		"required":   required,
		"properties": properties,
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nlcp/finance"
)

const mongoConnectTimeout = 5 * time.Second

// MongoClientStore reads client profiles from a MongoDB collection. Every Open
// establishes a fresh client and Close disconnects it.
type MongoClientStore struct {
	uri        string
	database   string
	collection string
}

func NewMongoClientStore(uri, database, collection string) *MongoClientStore {
	return &MongoClientStore{uri: uri, database: database, collection: collection}
}

func (s *MongoClientStore) Open(ctx context.Context) (finance.ClientRepository, error) {
	opts := options.Client().
		ApplyURI(s.uri).
		SetServerSelectionTimeout(mongoConnectTimeout).
		SetConnectTimeout(mongoConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &mongoClientRepo{
		client: client,
		coll:   client.Database(s.database).Collection(s.collection),
	}, nil
}

type mongoClientRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (r *mongoClientRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func mongoFilter(f finance.ClientFilter) bson.M {
	if f.Match == finance.MatchEqual {
		return bson.M{f.Field: f.Value}
	}
	return bson.M{f.Field: primitive.Regex{Pattern: f.Pattern()}}
}

var noID = bson.M{"_id": 0}

func (r *mongoClientRepo) Find(ctx context.Context, f finance.ClientFilter) ([]finance.Client, error) {
	cur, err := r.coll.Find(ctx, mongoFilter(f), options.Find().SetProjection(noID))
	if err != nil {
		return nil, fmt.Errorf("find clients: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read clients: %w", err)
	}
	out := make([]finance.Client, 0, len(docs))
	for _, doc := range docs {
		c, err := clientFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *mongoClientRepo) FindOne(ctx context.Context, f finance.ClientFilter) (*finance.Client, error) {
	var doc bson.M
	err := r.coll.FindOne(ctx, mongoFilter(f), options.FindOne().SetProjection(noID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	c, err := clientFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *mongoClientRepo) CountByManager(ctx context.Context) ([]finance.ManagerCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{finance.FieldRelationshipManager: bson.M{"$nin": bson.A{nil, ""}}}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + finance.FieldRelationshipManager, "client_count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "client_count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate managers: %w", err)
	}
	var rows []struct {
		Manager string `bson:"_id"`
		Count   int    `bson:"client_count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read managers: %w", err)
	}
	out := make([]finance.ManagerCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, finance.ManagerCount{RelationshipManager: row.Manager, ClientCount: row.Count})
	}
	return out, nil
}

func (r *mongoClientRepo) TopHoldings(ctx context.Context, investmentType string, limit int) ([]finance.InvestmentHolding, error) {
	typeFilter := finance.ClientFilter{Value: investmentType, Match: finance.MatchContains}
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$portfolio_by_preference"}},
		{{Key: "$match", Value: bson.M{"portfolio_by_preference.type": primitive.Regex{Pattern: typeFilter.Pattern()}}}},
		{{Key: "$sort", Value: bson.D{{Key: "portfolio_by_preference.value", Value: -1}, {Key: "client_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{
			"_id":             0,
			"client_id":       1,
			"name":            1,
			"risk_appetite":   1,
			"investment_type": "$portfolio_by_preference.type",
			"holding_value":   "$portfolio_by_preference.value",
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate holdings: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read holdings: %w", err)
	}
	out := make([]finance.InvestmentHolding, 0, len(docs))
	for _, doc := range docs {
		value, err := moneyFromBSON(doc["holding_value"])
		if err != nil {
			return nil, fmt.Errorf("holding value: %w: %w", finance.ErrInvalidRecord, err)
		}
		h := finance.InvestmentHolding{
			ClientID:       str(doc["client_id"]),
			Name:           str(doc["name"]),
			RiskAppetite:   finance.RiskAppetite(str(doc["risk_appetite"])),
			InvestmentType: str(doc["investment_type"]),
		}
		if value != nil {
			h.HoldingValue = *value
		}
		out = append(out, h)
	}
	return out, nil
}

// clientFromDoc converts a raw document, tolerating absent fields and the
// numeric encodings MongoDB may hold for amounts.
func clientFromDoc(doc bson.M) (finance.Client, error) {
	c := finance.Client{
		ClientID:              str(doc["client_id"]),
		Name:                  str(doc["name"]),
		Address:               str(doc["address"]),
		RiskAppetite:          finance.RiskAppetite(str(doc["risk_appetite"])),
		InvestmentPreferences: strs(doc["investment_preferences"]),
		RelationshipManager:   str(doc["relationship_manager"]),
	}
	initial, err := moneyFromBSON(doc["initial_portfolio_value"])
	if err != nil {
		return c, fmt.Errorf("client %s: initial_portfolio_value: %w: %w", c.ClientID, finance.ErrInvalidRecord, err)
	}
	c.InitialPortfolioValue = initial

	for _, item := range array(doc["portfolio_by_preference"]) {
		sub := document(item)
		if sub == nil {
			continue
		}
		v, err := moneyFromBSON(sub["value"])
		if err != nil {
			return c, fmt.Errorf("client %s: holding value: %w: %w", c.ClientID, finance.ErrInvalidRecord, err)
		}
		h := finance.Holding{Type: str(sub["type"])}
		if v != nil {
			h.Value = *v
		}
		c.PortfolioByPreference = append(c.PortfolioByPreference, h)
	}
	return c, nil
}

func moneyFromBSON(v any) (*finance.Money, error) {
	var d decimal.Decimal
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		d = decimal.NewFromFloat(n)
	case int32:
		d = decimal.NewFromInt32(n)
	case int64:
		d = decimal.NewFromInt(n)
	case primitive.Decimal128:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, err
		}
		d = parsed
	case string:
		m, err := finance.NewMoney(n)
		if err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unsupported amount type %T", v)
	}
	return &finance.Money{Decimal: d}, nil
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func array(v any) []any {
	switch a := v.(type) {
	case bson.A:
		return a
	case []any:
		return a
	}
	return nil
}

func strs(v any) []string {
	items := array(v)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, str(item))
	}
	return out
}

func document(v any) bson.M {
	switch d := v.(type) {
	case bson.M:
		return d
	case map[string]any:
		return d
	case bson.D:
		return d.Map()
	}
	return nil
}

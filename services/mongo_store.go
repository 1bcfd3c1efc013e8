package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"accessmap-server/models"
	"accessmap-server/utils/errors"
)

// Server error codes for an index that already exists under another name or
// with other options.
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// NewMongoClient connects to MongoDB. A failed ping is logged, not returned:
// the driver keeps reconnecting and /health reports the state.
func NewMongoClient(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true}).
		SetTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logrus.WithError(err).Warn("MongoDB ping failed, continuing without a confirmed connection")
	} else {
		logrus.Info("Connected to MongoDB")
	}
	return client, nil
}

// MongoStore keeps locations in a single collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
	now        func() time.Time
}

func NewMongoStore(client *mongo.Client, database, collection string, opTimeout time.Duration) *MongoStore {
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		opTimeout:  opTimeout,
		now:        time.Now,
	}
}

// locationDocument is the persisted shape of a Location.
type locationDocument struct {
	ID           primitive.ObjectID  `bson:"_id"`
	Name         string              `bson:"name"`
	LocationType models.LocationType `bson:"location_type"`
	Coordinates  models.GeoPoint     `bson:"coordinates"`
	Address      models.Address      `bson:"address"`
	Description  *string             `bson:"description,omitempty"`
	Tags         []string            `bson:"tags"`
	Images       []string            `bson:"images"`
	Details      bson.Raw            `bson:"details,omitempty"`
	Metadata     models.Metadata     `bson:"metadata"`
	CreatedAt    time.Time           `bson:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at"`
	DataSource   *string             `bson:"data_source,omitempty"`
	Distance     *float64            `bson:"distance,omitempty"`
}

func toDocument(id primitive.ObjectID, loc *models.Location) (*locationDocument, error) {
	details, err := marshalDetails(loc.Details)
	if err != nil {
		return nil, err
	}
	return &locationDocument{
		ID:           id,
		Name:         loc.Name,
		LocationType: loc.LocationType,
		Coordinates:  models.NewGeoPoint(loc.Coordinates),
		Address:      loc.Address,
		Description:  loc.Description,
		Tags:         nonNil(loc.Tags),
		Images:       nonNil(loc.Images),
		Details:      details,
		Metadata:     loc.Metadata,
		CreatedAt:    loc.CreatedAt,
		UpdatedAt:    loc.UpdatedAt,
		DataSource:   loc.DataSource,
	}, nil
}

func (d *locationDocument) toModel() (*models.Location, error) {
	loc := &models.Location{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		LocationType: d.LocationType,
		Coordinates:  d.Coordinates.ToCoordinates(),
		Address:      d.Address,
		Description:  d.Description,
		Tags:         nonNil(d.Tags),
		Images:       nonNil(d.Images),
		Metadata:     plainMetadata(d.Metadata),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		DataSource:   d.DataSource,
	}
	if loc.Metadata == nil {
		loc.Metadata = models.Metadata{}
	}
	if len(d.Details) > 0 {
		details, err := models.NewDetails(d.LocationType)
		if err != nil {
			return nil, err
		}
		if err := bson.Unmarshal(d.Details, details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", loc.ID, err)
		}
		loc.Details = details
	}
	return loc, nil
}

// plainMetadata swaps the driver's bson.M, bson.D and bson.A values for the
// plain maps and slices JSON decoding produces.
func plainMetadata(m models.Metadata) models.Metadata {
	if m == nil {
		return nil
	}
	out := make(models.Metadata, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return map[string]any(plainMetadata(models.Metadata(val)))
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = plainValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	}
	return v
}

func marshalDetails(d models.Details) (bson.Raw, error) {
	if d == nil {
		return nil, nil
	}
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return raw, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *MongoStore) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out := loc.Clone()
	now := stamp(s.now())
	out.CreatedAt, out.UpdatedAt = now, now

	oid := primitive.NewObjectID()
	doc, err := toDocument(oid, &out)
	if err != nil {
		return nil, errors.Wrap(err, "ENCODE_ERROR", "Failed to encode location", errors.ErrInternal.Status)
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, errors.Backend("insert location", err)
	}
	out.ID = oid.Hex()
	return &out, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Location, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.ErrNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc locationDocument
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Backend("find location", err)
	}
	return doc.toModel()
}

// Update applies the patch in one round trip. updated_at becomes the later of
// now and the stored value plus one millisecond, so it always moves forward.
func (s *MongoStore) Update(ctx context.Context, id string, patch models.LocationPatch) (*models.Location, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.ErrNotFound
	}
	set, err := buildUpdateSet(patch)
	if err != nil {
		return nil, errors.Wrap(err, "ENCODE_ERROR", "Failed to encode update", errors.ErrInternal.Status)
	}
	set = append(set, bson.E{Key: "updated_at", Value: bson.D{{Key: "$max", Value: bson.A{
		stamp(s.now()),
		bson.D{{Key: "$add", Value: bson.A{"$updated_at", 1}}},
	}}}})

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc locationDocument
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, mongo.Pipeline{{{Key: "$set", Value: set}}}, opts).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Backend("update location", err)
	}
	return doc.toModel()
}

// buildUpdateSet lists the supplied fields for a pipeline $set. Values go
// through $literal so strings starting with "$" are not read as field paths.
func buildUpdateSet(p models.LocationPatch) (bson.D, error) {
	set := bson.D{}
	add := func(key string, v any) {
		set = append(set, bson.E{Key: key, Value: bson.D{{Key: "$literal", Value: v}}})
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Coordinates != nil {
		add("coordinates", models.NewGeoPoint(*p.Coordinates))
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Tags != nil {
		add("tags", nonNil(*p.Tags))
	}
	if p.Images != nil {
		add("images", nonNil(*p.Images))
	}
	if p.Details != nil {
		raw, err := marshalDetails(p.Details)
		if err != nil {
			return nil, err
		}
		add("details", raw)
	}
	if p.Metadata != nil {
		add("metadata", *p.Metadata)
	}
	if p.DataSource != nil {
		add("data_source", *p.DataSource)
	}
	return set, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, errors.Backend("delete location", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter, page Pagination) (*models.LocationList, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := buildListFilter(filter)
	total, err := s.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, errors.Backend("count locations", err)
	}
	cursor, err := s.collection.Find(ctx, query, listFindOptions(page))
	if err != nil {
		return nil, errors.Backend("find locations", err)
	}
	defer cursor.Close(ctx)

	var docs []locationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Backend("decode locations", err)
	}
	items := make([]models.Location, 0, len(docs))
	for i := range docs {
		loc, err := docs[i].toModel()
		if err != nil {
			return nil, errors.Backend("decode locations", err)
		}
		items = append(items, *loc)
	}
	return &models.LocationList{Total: total, Items: items}, nil
}

func (s *MongoStore) Nearby(ctx context.Context, q ProximityQuery) ([]models.NearbyLocation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.collection.Aggregate(ctx, buildProximityPipeline(q))
	if err != nil {
		return nil, errors.Backend("proximity search", err)
	}
	defer cursor.Close(ctx)

	var docs []locationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Backend("decode proximity results", err)
	}
	out := make([]models.NearbyLocation, 0, len(docs))
	for i := range docs {
		loc, err := docs[i].toModel()
		if err != nil {
			return nil, errors.Backend("decode proximity results", err)
		}
		var dist float64
		if docs[i].Distance != nil {
			dist = *docs[i].Distance
		}
		out = append(out, models.NearbyLocation{Location: *loc, Distance: dist})
	}
	return out, nil
}

// locationIndexes are the indexes the queries above rely on.
func locationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "coordinates", Value: "2dsphere"}}, Options: options.Index().SetName("coordinates_2dsphere")},
		{Keys: bson.D{{Key: "location_type", Value: 1}}, Options: options.Index().SetName("location_type_filter")},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags_filter")},
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("created_at_sort")},
	}
}

// EnsureIndexes creates the collection indexes. Running it again is a no-op;
// an index that exists with different options is logged and left alone.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for _, model := range locationIndexes() {
		name, err := s.collection.Indexes().CreateOne(ctx, model)
		if isIndexConflict(err) {
			logrus.WithError(err).WithField("keys", model.Keys).Warn("Index already exists")
			continue
		}
		if err != nil {
			return errors.Backend("create index", err)
		}
		logrus.WithField("index", name).Debug("Index ensured")
	}
	return nil
}

func isIndexConflict(err error) bool {
	var se mongo.ServerError
	if !stderrors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeIndexOptionsConflict) || se.HasErrorCode(codeIndexKeySpecsConflict)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

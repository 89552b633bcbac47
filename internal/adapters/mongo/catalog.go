package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

// CatalogRepository holds stadiums and their hourly rates.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
	now    func() time.Time
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("stadiums"),
		logger: logger,
		now:    time.Now,
	}
}

type StadiumDoc struct {
	ID           string               `bson:"_id"`
	Name         string               `bson:"name"`
	City         string               `bson:"city"`
	PricePerHour primitive.Decimal128 `bson:"price_per_hour"`
	Active       bool                 `bson:"active"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// Rate returns the hourly price as a decimal.
func (d StadiumDoc) Rate() (decimal.Decimal, error) {
	return decimal.NewFromString(d.PricePerHour.String())
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func (c *CatalogRepository) GetStadium(ctx context.Context, id string) (*StadiumDoc, error) {
	var doc StadiumDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NotFoundErrorf("stadium %q not found", id)
	}
	if err != nil {
		c.logger.WithError(err).WithField("stadium_id", id).Error("failed to get stadium")
		return nil, err
	}
	return &doc, nil
}

// StadiumRate returns the current hourly rate of an active stadium.
func (c *CatalogRepository) StadiumRate(ctx context.Context, id string) (decimal.Decimal, error) {
	doc, err := c.GetStadium(ctx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !doc.Active {
		return decimal.Decimal{}, domain.ValidationErrorf("stadium %q is not accepting bookings", id)
	}
	rate, err := doc.Rate()
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "stadium %q has unreadable rate", id)
	}
	return rate, nil
}

func (c *CatalogRepository) CreateStadium(ctx context.Context, doc StadiumDoc) error {
	now := c.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		c.logger.WithError(err).WithField("stadium_id", doc.ID).Error("failed to create stadium")
		return err
	}
	return nil
}

func (c *CatalogRepository) UpdateRate(ctx context.Context, id string, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return domain.ValidationErrorf("rate must be positive, got %s", rate)
	}
	d128, err := toDecimal128(rate)
	if err != nil {
		return errors.Wrap(err, "encode rate")
	}
	res, err := c.coll.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"price_per_hour": d128, "updated_at": c.now()}},
	)
	if err != nil {
		c.logger.WithError(err).WithField("stadium_id", id).Error("failed to update stadium rate")
		return err
	}
	if res.MatchedCount == 0 {
		return domain.NotFoundErrorf("stadium %q not found", id)
	}
	return nil
}

// NewStadiumDoc builds an active stadium document with the given rate.
func NewStadiumDoc(id, name, city string, rate decimal.Decimal) (StadiumDoc, error) {
	d128, err := toDecimal128(rate)
	if err != nil {
		return StadiumDoc{}, errors.Wrap(err, "encode rate")
	}
	return StadiumDoc{ID: id, Name: name, City: city, PricePerHour: d128, Active: true}, nil
}

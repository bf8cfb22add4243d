package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStaffDirectory stores staff members in the "staff" collection.
type MongoStaffDirectory struct {
	coll *mongo.Collection
}

func NewMongoStaffDirectory(db *mongo.Database) *MongoStaffDirectory {
	return &MongoStaffDirectory{coll: db.Collection("staff")}
}

func (d *MongoStaffDirectory) Collection() *mongo.Collection { return d.coll }

func (d *MongoStaffDirectory) AddStaff(ctx context.Context, staff *models.Staff) (*models.Staff, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out := *staff
	out.Email = strings.ToLower(strings.TrimSpace(out.Email))
	if out.ID.IsZero() {
		out.ID = primitive.NewObjectID()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if _, err := d.coll.InsertOne(ctx, out); err != nil {
		return nil, classifyWrite(err, "add staff")
	}
	return &out, nil
}

func (d *MongoStaffDirectory) GetStaff(ctx context.Context, id string) (*models.Staff, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var staff models.Staff
	if err := d.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&staff); err != nil {
		return nil, classifyRead(err, fmt.Sprintf("staff %q", id))
	}
	return &staff, nil
}

func (d *MongoStaffDirectory) ListStaff(ctx context.Context) ([]models.Staff, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := d.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, classifyRead(err, "list staff")
	}
	defer cursor.Close(ctx)

	staff := []models.Staff{}
	if err := cursor.All(ctx, &staff); err != nil {
		return nil, classifyRead(err, "decode staff")
	}
	return staff, nil
}

func (d *MongoStaffDirectory) DeleteStaff(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := d.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return classifyWrite(err, "delete staff")
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: staff %q", engine.ErrNotFound, id)
	}
	return nil
}

// MongoAccounts stores local user accounts in the "users" collection.
type MongoAccounts struct {
	coll *mongo.Collection
}

func NewMongoAccounts(db *mongo.Database) *MongoAccounts {
	return &MongoAccounts{coll: db.Collection("users")}
}

func (a *MongoAccounts) Collection() *mongo.Collection { return a.coll }

// Standing looks the user up by id. Identities without a local account
// (issued by an external provider) have the zero standing.
func (a *MongoAccounts) Standing(ctx context.Context, userID string) (models.Standing, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.Standing{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	err = a.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return models.Standing{}, nil
	}
	if err != nil {
		return models.Standing{}, classifyRead(err, "user standing")
	}
	return models.Standing{Premium: user.Premium, Blocked: user.Blocked}, nil
}

func (a *MongoAccounts) Register(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	count, err := a.coll.CountDocuments(ctx, bson.M{"email": user.Email})
	if err != nil {
		return nil, classifyRead(err, "check existing user")
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: user with this email already exists", engine.ErrConflict)
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, err := a.coll.InsertOne(ctx, user); err != nil {
		return nil, classifyWrite(err, "insert user")
	}
	return user, nil
}

func (a *MongoAccounts) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	err := a.coll.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		return nil, classifyRead(err, "user")
	}
	return &user, nil
}

func (a *MongoAccounts) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	if err := a.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		return nil, classifyRead(err, "user")
	}
	return &user, nil
}

func (a *MongoAccounts) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := a.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, classifyRead(err, "list users")
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, classifyRead(err, "decode users")
	}
	return users, nil
}

// SetBlocked blocks or unblocks the user with the given email.
func (a *MongoAccounts) SetBlocked(ctx context.Context, email string, blocked bool) (*models.User, error) {
	return a.updateByEmail(ctx, email, bson.M{"blocked": blocked})
}

// SetRole changes the role claim issued to the user on next login.
func (a *MongoAccounts) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", engine.ErrValidation, role)
	}
	return a.updateByEmail(ctx, email, bson.M{"role": role})
}

func (a *MongoAccounts) updateByEmail(ctx context.Context, email string, set bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	set["updatedAt"] = time.Now().UTC()
	var user models.User
	err := a.coll.FindOneAndUpdate(ctx,
		bson.M{"email": strings.ToLower(strings.TrimSpace(email))},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, classifyRead(err, "user "+email)
	}
	return &user, nil
}

// SetPremium marks the user premium. Repeating it is harmless.
func (a *MongoAccounts) SetPremium(ctx context.Context, userID string) (*models.User, error) {
	oid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var user models.User
	err = a.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"premium": true, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, classifyRead(err, "user "+userID)
	}
	return &user, nil
}

// MongoPaymentLedger stores confirmed payments in the "payments" collection.
type MongoPaymentLedger struct {
	coll *mongo.Collection
}

func NewMongoPaymentLedger(db *mongo.Database) *MongoPaymentLedger {
	return &MongoPaymentLedger{coll: db.Collection("payments")}
}

func (l *MongoPaymentLedger) Collection() *mongo.Collection { return l.coll }

// Record upserts on the unique reference, so a redelivered webhook never
// records the same payment twice.
func (l *MongoPaymentLedger) Record(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	doc := bson.M{
		"kind":        p.Kind,
		"userId":      p.UserID,
		"amountCents": p.AmountCents,
		"currency":    p.Currency,
		"createdAt":   p.CreatedAt,
	}
	if p.IssueID != nil {
		doc["issueId"] = *p.IssueID
	}
	_, err := l.coll.UpdateOne(ctx,
		bson.M{"reference": p.Reference},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return classifyWrite(err, "record payment")
}

func (l *MongoPaymentLedger) Totals(ctx context.Context) (models.PaymentTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amountCents"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := l.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.PaymentTotals{}, classifyRead(err, "payment totals")
	}
	defer cursor.Close(ctx)

	var rows []models.PaymentTotals
	if err := cursor.All(ctx, &rows); err != nil {
		return models.PaymentTotals{}, classifyRead(err, "decode payment totals")
	}
	if len(rows) == 0 {
		return models.PaymentTotals{}, nil
	}
	return rows[0], nil
}

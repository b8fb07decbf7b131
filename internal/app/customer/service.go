/*
Package customer manages customer profiles, the relations between customers
and their profile photos.

A customer is owned by exactly one user and is the principal of every chat
operation, so most handlers start with Service.ForUser.
*/
package customer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"flipside/internal/app/db"
	"flipside/internal/app/storage"
	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/randx"
)

const (
	// MaxNameLength bounds customers.name.
	MaxNameLength = 100

	// ZipCodeLength is the exact length of a zip code.
	ZipCodeLength = 5

	// PresignedURLDuration is how long photo upload and download URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// Store is the persistence the service needs. *db.Queries implements it.
type Store interface {
	GetCustomerByID(ctx context.Context, id int64) (db.Customer, error)
	GetCustomerByUserID(ctx context.Context, userID int64) (db.Customer, error)
	CreateCustomer(ctx context.Context, arg db.CreateCustomerParams) (db.Customer, error)
	SetRelation(ctx context.Context, arg db.SetRelationParams) error
	CreateCustomerPhoto(ctx context.Context, arg db.CreateCustomerPhotoParams) (db.CustomerPhoto, error)
	ListCustomerPhotos(ctx context.Context, customerID int64) ([]db.CustomerPhoto, error)
	DeleteCustomerPhoto(ctx context.Context, arg db.DeleteCustomerPhotoParams) (db.CustomerPhoto, error)
}

// Profile is the public view of a customer.
type Profile struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	ZipCode    string  `json:"zip_code"`
	Bio        *string `json:"bio"`
	Occupation *string `json:"occupation"`
}

func profileOf(c db.Customer) Profile {
	return Profile{
		ID:         c.ID,
		Name:       c.Name,
		ZipCode:    c.ZipCode,
		Bio:        textPtr(c.Bio),
		Occupation: textPtr(c.Occupation),
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func optionalText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	v := strings.TrimSpace(*s)
	return pgtype.Text{String: v, Valid: v != ""}
}

// CreateInput is the body of a profile creation request.
type CreateInput struct {
	Name       string  `json:"name"`
	ZipCode    string  `json:"zip_code"`
	Bio        *string `json:"bio"`
	Occupation *string `json:"occupation"`
}

// PresignInput describes a photo the client is about to upload.
type PresignInput struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// PresignedPhoto is where and under which key a photo must be uploaded.
type PresignedPhoto struct {
	ID           int64  `json:"id"`
	PresignedURL string `json:"presigned_url"`
	FileKey      string `json:"file_key"`
	FileName     string `json:"file_name"`
}

// Photo is a stored photo with a temporary download URL.
type Photo struct {
	ID        int64  `json:"id"`
	FileKey   string `json:"file_key"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

// Service implements the customer operations.
type Service struct {
	store Store

	// files is nil when no bucket is configured.
	files storage.Storage

	logger zerolog.Logger
}

func NewService(store Store, files storage.Storage) *Service {
	return &Service{
		store:  store,
		files:  files,
		logger: logx.Component("customer"),
	}
}

// ForUser returns the customer owned by userID.
func (s *Service) ForUser(ctx context.Context, userID int64) (db.Customer, *errs.CustomError) {
	c, err := s.store.GetCustomerByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Customer{}, errs.NewError(errs.ErrNotFound)
		}
		return db.Customer{}, errs.NewError(errs.ErrUnknown, err)
	}
	return c, nil
}

// Me returns the profile of the user's customer.
func (s *Service) Me(ctx context.Context, userID int64) (*Profile, *errs.CustomError) {
	c, cerr := s.ForUser(ctx, userID)
	if cerr != nil {
		return nil, cerr
	}
	p := profileOf(c)
	return &p, nil
}

// Create creates the customer profile of a user.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*Profile, *errs.CustomError) {
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}
	if len(in.ZipCode) != ZipCodeLength || !randx.IsDigits(in.ZipCode) {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	c, err := s.store.CreateCustomer(ctx, db.CreateCustomerParams{
		UserID:     userID,
		Name:       name,
		ZipCode:    in.ZipCode,
		Bio:        optionalText(in.Bio),
		Occupation: optionalText(in.Occupation),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errs.NewError(errs.ErrCustomerAlreadyExists)
		}
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	s.logger.Info().Int64("customer_id", c.ID).Int64("user_id", userID).Msg("Customer profile created")
	p := profileOf(c)
	return &p, nil
}

// SetRelation records how the customer reacted to another one. A block stops
// all chat traffic between the two.
func (s *Service) SetRelation(ctx context.Context, from db.Customer, toID int64, relation string) *errs.CustomError {
	if relation != db.RelationLike && relation != db.RelationBlock {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if toID == from.ID {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if _, err := s.store.GetCustomerByID(ctx, toID); err != nil {
		if db.IsNotFound(err) {
			return errs.NewError(errs.ErrNotFound)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	err := s.store.SetRelation(ctx, db.SetRelationParams{
		FromCustomerID: from.ID,
		ToCustomerID:   toID,
		Relation:       relation,
	})
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}
	return nil
}

// PresignPhoto validates the upload, records its key and returns a presigned PUT URL.
func (s *Service) PresignPhoto(ctx context.Context, c db.Customer, in PresignInput) (*PresignedPhoto, *errs.CustomError) {
	if cerr := storage.ValidateFileSize(in.FileSize); cerr != nil {
		return nil, cerr
	}
	if cerr := storage.ValidateFileType(in.FileName, in.MimeType); cerr != nil {
		return nil, cerr
	}
	if s.files == nil {
		return nil, errs.NewError(errs.ErrFileStorageFailed)
	}

	key := photoKey(c.ID, in.FileName)

	url, err := s.files.PresignUpload(ctx, key, strings.ToLower(in.MimeType), in.FileSize, PresignedURLDuration)
	if err != nil {
		return nil, errs.NewError(errs.ErrFileStorageFailed)
	}

	photo, err := s.store.CreateCustomerPhoto(ctx, db.CreateCustomerPhotoParams{CustomerID: c.ID, ObjectKey: key})
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return &PresignedPhoto{
		ID:           photo.ID,
		PresignedURL: url,
		FileKey:      key,
		FileName:     in.FileName,
	}, nil
}

func photoKey(customerID int64, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("customers/%d/photos/%s%s", customerID, randx.ObjectID(), ext)
}

// Photos lists the customer's photos, oldest first, with download URLs.
func (s *Service) Photos(ctx context.Context, c db.Customer) ([]Photo, *errs.CustomError) {
	if s.files == nil {
		return nil, errs.NewError(errs.ErrFileStorageFailed)
	}

	stored, err := s.store.ListCustomerPhotos(ctx, c.ID)
	if err != nil {
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	photos := make([]Photo, 0, len(stored))
	for _, p := range stored {
		url, err := s.files.PresignDownload(ctx, p.ObjectKey, PresignedURLDuration)
		if err != nil {
			return nil, errs.NewError(errs.ErrFileStorageFailed)
		}
		photos = append(photos, Photo{
			ID:        p.ID,
			FileKey:   p.ObjectKey,
			URL:       url,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return photos, nil
}

// DeletePhoto removes a photo of the customer and then its object. The row is
// gone even when the object delete fails; the orphan is only logged.
func (s *Service) DeletePhoto(ctx context.Context, c db.Customer, photoID int64) *errs.CustomError {
	photo, err := s.store.DeleteCustomerPhoto(ctx, db.DeleteCustomerPhotoParams{ID: photoID, CustomerID: c.ID})
	if err != nil {
		if db.IsNotFound(err) {
			return errs.NewError(errs.ErrNotFound)
		}
		return errs.NewError(errs.ErrUnknown, err)
	}

	if s.files == nil {
		return nil
	}
	if err := s.files.Delete(ctx, photo.ObjectKey); err != nil {
		s.logger.Warn().Err(err).Str("key", photo.ObjectKey).Msg("Photo object left in bucket")
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "storefront-backend/errors"
	"storefront-backend/models"
	awspkg "storefront-backend/pkg/aws"
	"storefront-backend/repository"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// UploadTicket is a presigned direct-to-S3 upload grant.
type UploadTicket struct {
	UploadURL string            `json:"uploadUrl"`
	PublicURL string            `json:"publicUrl"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresIn int               `json:"expiresIn"`
}

// ProductService is the catalog read/write surface. Reads go through the
// redis cache; every write invalidates it.
type ProductService struct {
	products repository.ProductRepository
	cache    *CacheManager
	awsCfg   sdkaws.Config
	bucket   string
	prefix   string
	logger   *zap.Logger
}

// NewProductService creates a ProductService. cache may be nil, in which
// case every read hits the database.
func NewProductService(products repository.ProductRepository, cache *CacheManager, awsCfg sdkaws.Config, bucket, prefix string, logger *zap.Logger) *ProductService {
	return &ProductService{
		products: products,
		cache:    cache,
		awsCfg:   awsCfg,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
	}
}

// Create adds a catalog entry, deriving the slug from the name when absent.
func (s *ProductService) Create(ctx context.Context, product *models.Product) error {
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}
	if product.Currency == "" {
		product.Currency = "NGN"
	}
	product.InStock = product.StockCount > 0

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return apperrors.WithMessage(apperrors.ErrConflict, "A product with this slug already exists")
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if s.cache != nil {
		s.cache.InvalidateProduct(ctx, product.ID.Hex())
	}
	s.logger.Info("Product created", zap.String("slug", product.Slug))
	return nil
}

// Get loads one product, cache first.
func (s *ProductService) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if s.cache != nil {
		if product, ok := s.cache.GetProduct(ctx, id.Hex()); ok {
			return product, nil
		}
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.WithMessage(apperrors.ErrNotFound, "Product not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if s.cache != nil {
		s.cache.SetProductAsync(id.Hex(), product)
	}
	return product, nil
}

// List returns a catalog page, cache first.
func (s *ProductService) List(ctx context.Context, page, limit int) ([]models.Product, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	if s.cache != nil {
		if products, total, ok := s.cache.GetProductList(ctx, page, limit); ok {
			return products, total, nil
		}
	}

	products, total, err := s.products.List(ctx, page, limit)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if s.cache != nil {
		s.cache.SetProductListAsync(page, limit, products, total)
	}
	return products, total, nil
}

// Update applies a partial update and invalidates the cache.
func (s *ProductService) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	if err := s.products.Update(ctx, id, updates); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.WithMessage(apperrors.ErrNotFound, "Product not found")
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if s.cache != nil {
		s.cache.InvalidateProduct(ctx, id.Hex())
	}
	return nil
}

// PresignImageUpload issues a short-lived presigned PUT URL for a product
// image. The object key is namespaced under the configured prefix and a
// fresh uuid so uploads can never clobber each other.
func (s *ProductService) PresignImageUpload(ctx context.Context, filename, contentType string) (*UploadTicket, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "Only image uploads are allowed")
	}

	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	key := fmt.Sprintf("%s%s%s", s.prefix, uuid.NewString(), ext)

	const expiry = 15 * time.Minute
	uploadURL, headers, err := awspkg.GeneratePresignedPutURL(ctx, s.awsCfg, s.bucket, key, contentType, expiry)
	if err != nil {
		s.logger.Error("Presign failed", zap.String("key", key), zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &UploadTicket{
		UploadURL: uploadURL,
		PublicURL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.awsCfg.Region, key),
		Key:       key,
		Headers:   headers,
		ExpiresIn: int(expiry.Seconds()),
	}, nil
}

// Slugify lowercases a name and squashes runs of non-alphanumerics to
// single hyphens.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

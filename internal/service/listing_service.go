package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"easyrent/internal/core/cache"
	"easyrent/internal/domain"
	"easyrent/internal/media"
	"easyrent/pkg/apperrors"
	"easyrent/pkg/utils"
)

var errListingNotFound = apperrors.NotFound("No appartment found with that ID")

type ListingOptions struct {
	Cache    Cache
	CacheTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

type ListingService struct {
	listings domain.ListingRepository
	users    domain.UserRepository
	media    MediaProcessor
	cache    Cache
	cacheTTL time.Duration
	l        *zap.Logger
	now      func() time.Time
}

func NewListingService(listings domain.ListingRepository, users domain.UserRepository, mp MediaProcessor, opts ListingOptions) *ListingService {
	s := &ListingService{
		listings: listings,
		users:    users,
		media:    mp,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		l:        opts.Logger,
		now:      opts.Now,
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	if s.l == nil {
		s.l = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Uploads are the image parts of a multipart request.
type Uploads struct {
	Primary   *multipart.FileHeader
	Secondary []*multipart.FileHeader
}

func (u Uploads) empty() bool { return u.Primary == nil && len(u.Secondary) == 0 }

// ListingInput creates a listing from JSON or multipart form fields.
// Location comes as an object in JSON and as latitude/longitude in forms.
type ListingInput struct {
	HouseName        string           `json:"houseName" form:"houseName" binding:"required,max=128"`
	HouseAddress     string           `json:"houseAddress" form:"houseAddress" binding:"omitempty,max=255"`
	HouseType        string           `json:"houseType" form:"houseType" binding:"omitempty,max=64"`
	State            string           `json:"state" form:"state" binding:"required,max=64"`
	LGA              string           `json:"lga" form:"lga" binding:"required,max=64"`
	Price            *float64         `json:"price" form:"price" binding:"required,gte=0"`
	MinPrice         *float64         `json:"minPrice" form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice         *float64         `json:"maxPrice" form:"maxPrice" binding:"omitempty,gte=0"`
	HouseImage       string           `json:"houseImage" form:"-" binding:"omitempty,url"`
	Images           []string         `json:"images" form:"-" binding:"omitempty,max=5,dive,url"`
	Location         *domain.Location `json:"location" form:"-"`
	Latitude         *float64         `json:"-" form:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude        *float64         `json:"-" form:"longitude" binding:"omitempty,gte=-180,lte=180"`
	IsRented         bool             `json:"isRented" form:"isRented"`
	SubscriptionType string           `json:"subscriptionType" form:"subscriptionType" binding:"omitempty,oneof=basic silver gold diamond"`
	// staff may create on behalf of another user
	User string `json:"user" form:"user"`
}

// ListingPatch changes only the fields that are present.
type ListingPatch struct {
	HouseName        *string          `json:"houseName" form:"houseName" binding:"omitempty,min=1,max=128"`
	HouseAddress     *string          `json:"houseAddress" form:"houseAddress" binding:"omitempty,max=255"`
	HouseType        *string          `json:"houseType" form:"houseType" binding:"omitempty,max=64"`
	State            *string          `json:"state" form:"state" binding:"omitempty,min=1,max=64"`
	LGA              *string          `json:"lga" form:"lga" binding:"omitempty,min=1,max=64"`
	Price            *float64         `json:"price" form:"price" binding:"omitempty,gte=0"`
	MinPrice         *float64         `json:"minPrice" form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice         *float64         `json:"maxPrice" form:"maxPrice" binding:"omitempty,gte=0"`
	Location         *domain.Location `json:"location" form:"-"`
	Latitude         *float64         `json:"-" form:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude        *float64         `json:"-" form:"longitude" binding:"omitempty,gte=-180,lte=180"`
	IsRented         *bool            `json:"isRented" form:"isRented"`
	SubscriptionType *string          `json:"subscriptionType" form:"subscriptionType" binding:"omitempty,oneof=basic silver gold diamond"`
}

// 缓存只存 listing 本身，owner 每次现查；写入时递增版本号淘汰旧条目
func cacheKey(id string, gen int64) string { return fmt.Sprintf("listing:%s:v%d", id, gen) }

func genKey(id string) string { return "listing:" + id + ":gen" }

func checkPriceRange(minP, maxP *float64) error {
	if minP != nil && maxP != nil && *minP > *maxP {
		return apperrors.Validation("Invalid price range", map[string]string{"minPrice": "must not exceed maxPrice"})
	}
	return nil
}

func mergeLocation(loc *domain.Location, lat, lng *float64, into *domain.Location) {
	if loc != nil {
		*into = *loc
	}
	if lat != nil {
		into.Latitude = *lat
	}
	if lng != nil {
		into.Longitude = *lng
	}
}

func (s *ListingService) Create(ctx context.Context, actor *domain.User, in ListingInput, up Uploads) (*domain.Listing, error) {
	if err := checkPriceRange(in.MinPrice, in.MaxPrice); err != nil {
		return nil, err
	}
	ownerID := actor.ID
	if in.User != "" && in.User != actor.ID {
		if !isStaff(actor) {
			return nil, apperrors.ErrForbidden
		}
		ownerID = in.User
	}
	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Upstream("Could not load owner", err)
	}
	if owner == nil || !owner.IsActiveUser {
		return nil, apperrors.Validation("Invalid owner", map[string]string{"user": "must be an existing active user"})
	}

	now := s.now().UTC()
	l := &domain.Listing{
		ID:               utils.NewID(),
		HouseName:        strings.TrimSpace(in.HouseName),
		HouseAddress:     strings.TrimSpace(in.HouseAddress),
		HouseType:        strings.TrimSpace(in.HouseType),
		State:            strings.TrimSpace(in.State),
		LGA:              strings.TrimSpace(in.LGA),
		Price:            *in.Price,
		MinPrice:         in.MinPrice,
		MaxPrice:         in.MaxPrice,
		HouseImage:       in.HouseImage,
		Images:           append([]string{}, in.Images...),
		UserID:           owner.ID,
		IsRented:         in.IsRented,
		SubscriptionType: in.SubscriptionType,
		DateUploaded:     now,
		UpdatedAt:        now,
	}
	if l.SubscriptionType == "" {
		l.SubscriptionType = owner.SubscriptionType
	}
	mergeLocation(in.Location, in.Latitude, in.Longitude, &l.Location)

	stored, err := s.storeImages(ctx, owner.ID, up, l)
	if err != nil {
		return nil, err
	}
	if err := s.listings.Create(ctx, l); err != nil {
		s.discard(ctx, stored)
		return nil, apperrors.Upstream("Could not create appartment", err)
	}
	l.Owner = owner.Summary()
	return l, nil
}

// storeImages 上传成功后覆盖表单里的图片地址
func (s *ListingService) storeImages(ctx context.Context, ownerID string, up Uploads, l *domain.Listing) (media.Result, error) {
	if up.empty() || s.media == nil {
		return media.Result{}, nil
	}
	res, err := s.media.Process(ctx, ownerID, up.Primary, up.Secondary)
	if err != nil {
		return media.Result{}, err
	}
	if res.HouseImage != "" {
		l.HouseImage = res.HouseImage
	}
	if len(res.Images) > 0 {
		l.Images = res.Images
	}
	return res, nil
}

func (s *ListingService) discard(ctx context.Context, res media.Result) {
	if s.media != nil && len(res.Keys) > 0 {
		s.media.Discard(context.WithoutCancel(ctx), res)
	}
}

// Get returns a visible listing with its owner summary, read through the cache.
func (s *ListingService) Get(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.cached(ctx, id)
	if err != nil {
		return nil, err
	}
	return l, s.attachOwner(ctx, l)
}

func (s *ListingService) cached(ctx context.Context, id string) (*domain.Listing, error) {
	if s.cache == nil {
		return s.visible(ctx, id)
	}
	gen, err := s.cache.Generation(ctx, genKey(id))
	if err != nil {
		s.l.Warn("read listing cache generation", zap.String("id", id), zap.Error(err))
		return s.visible(ctx, id)
	}
	return cache.GetOrLoadJSON(s.cache, ctx, cacheKey(id, gen), s.cacheTTL, func(ctx context.Context) (*domain.Listing, error) {
		return s.visible(ctx, id)
	})
}

func (s *ListingService) attachOwner(ctx context.Context, l *domain.Listing) error {
	owner, err := s.users.FindByID(ctx, l.UserID)
	if err != nil {
		return apperrors.Upstream("Could not load owner", err)
	}
	if owner != nil {
		l.Owner = owner.Summary()
	}
	return nil
}

func (s *ListingService) visible(ctx context.Context, id string) (*domain.Listing, error) {
	l, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream("Could not load appartment", err)
	}
	if l == nil || l.IsDeleted {
		return nil, errListingNotFound
	}
	return l, nil
}

func (s *ListingService) List(ctx context.Context, values url.Values) (*Page, error) {
	q, err := parseQuery(values, domain.ListingSchema)
	if err != nil {
		return nil, err
	}
	q.Require("isDeleted", false)
	return listPage(ctx, q, s.listings.List)
}

func (s *ListingService) ListByOwner(ctx context.Context, ownerID string, values url.Values) (*Page, error) {
	q, err := parseQuery(values, domain.ListingSchema)
	if err != nil {
		return nil, err
	}
	q.Require("isDeleted", false)
	q.Require("user", ownerID)
	return listPage(ctx, q, s.listings.List)
}

// editable loads a listing the actor may change: its owner or staff.
func (s *ListingService) editable(ctx context.Context, actor *domain.User, id string) (*domain.Listing, error) {
	l, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.OwnedBy(actor.ID) && !isStaff(actor) {
		return nil, apperrors.ErrForbidden
	}
	return l, nil
}

func (s *ListingService) Update(ctx context.Context, actor *domain.User, id string, in ListingPatch, up Uploads) (*domain.Listing, error) {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.HouseName != nil {
		l.HouseName = strings.TrimSpace(*in.HouseName)
	}
	if in.HouseAddress != nil {
		l.HouseAddress = strings.TrimSpace(*in.HouseAddress)
	}
	if in.HouseType != nil {
		l.HouseType = strings.TrimSpace(*in.HouseType)
	}
	if in.State != nil {
		l.State = strings.TrimSpace(*in.State)
	}
	if in.LGA != nil {
		l.LGA = strings.TrimSpace(*in.LGA)
	}
	if in.Price != nil {
		l.Price = *in.Price
	}
	if in.MinPrice != nil {
		l.MinPrice = in.MinPrice
	}
	if in.MaxPrice != nil {
		l.MaxPrice = in.MaxPrice
	}
	if in.IsRented != nil {
		l.IsRented = *in.IsRented
	}
	if in.SubscriptionType != nil {
		l.SubscriptionType = *in.SubscriptionType
	}
	mergeLocation(in.Location, in.Latitude, in.Longitude, &l.Location)
	if err := checkPriceRange(l.MinPrice, l.MaxPrice); err != nil {
		return nil, err
	}

	stored, err := s.storeImages(ctx, l.UserID, up, l)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, l); err != nil {
		s.discard(ctx, stored)
		return nil, err
	}
	return l, nil
}

// Delete hides the listing; the row is kept.
func (s *ListingService) Delete(ctx context.Context, actor *domain.User, id string) error {
	l, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	l.IsDeleted = true
	return s.save(ctx, l)
}

func (s *ListingService) SetVerified(ctx context.Context, id string, verified bool) (*domain.Listing, error) {
	l, err := s.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	l.IsVerified = verified
	return l, s.save(ctx, l)
}

func (s *ListingService) save(ctx context.Context, l *domain.Listing) error {
	l.UpdatedAt = s.now().UTC()
	owner := l.Owner
	l.Owner = nil
	err := s.listings.Update(ctx, l)
	l.Owner = owner
	if err != nil {
		return apperrors.Upstream("Could not save appartment", err)
	}
	s.invalidate(ctx, l.ID)
	return nil
}

func (s *ListingService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(context.WithoutCancel(ctx), genKey(id)); err != nil {
		s.l.Warn("invalidate listing cache", zap.String("id", id), zap.Error(err))
	}
}

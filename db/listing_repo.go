package db

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shashank8536/Campus-MarketPlace/models"
)

// ListingRepository resolves conversation subjects. The catalog is owned
// elsewhere; the messaging core only ever reads.
type ListingRepository interface {
	FindListingByID(id uuid.UUID) (*models.Listing, error)
}

type listingRepo struct {
	DB *gorm.DB
}

func NewListingRepo(db *GormDB) ListingRepository {
	return &listingRepo{db.DB}
}

func (r *listingRepo) FindListingByID(id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.DB.Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

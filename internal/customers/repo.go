package customers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/greenbasket-backend/pkg/db/models"
)

// Repository exposes persistence helpers for customer and staff accounts.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateCustomer inserts a new customer row.
func (r *Repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// FindCustomerByID loads a customer.
func (r *Repository) FindCustomerByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByLogin matches the identifier against username or email.
func (r *Repository) FindCustomerByLogin(ctx context.Context, identifier string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		First(&customer, "username = ? OR email = ?", identifier, identifier).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerExists reports which unique columns are already taken.
func (r *Repository) CustomerExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var count int64
	if err = r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return false, false, err
	}
	usernameTaken = count > 0

	if err = r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return false, false, err
	}
	emailTaken = count > 0
	return usernameTaken, emailTaken, nil
}

// UpdateCustomer persists the full customer row.
func (r *Repository) UpdateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

// StampCustomerLogin records the successful login time.
func (r *Repository) StampCustomerLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", now).Error
}

// CreateStaff inserts a new staff account.
func (r *Repository) CreateStaff(ctx context.Context, staff *models.StaffAccount) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

// FindStaffByID loads a staff account.
func (r *Repository) FindStaffByID(ctx context.Context, id uuid.UUID) (*models.StaffAccount, error) {
	var staff models.StaffAccount
	if err := r.db.WithContext(ctx).First(&staff, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}

// FindStaffByLogin matches the identifier against username or email.
func (r *Repository) FindStaffByLogin(ctx context.Context, identifier string) (*models.StaffAccount, error) {
	var staff models.StaffAccount
	err := r.db.WithContext(ctx).
		First(&staff, "username = ? OR email = ?", identifier, identifier).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

// StaffExists reports which unique columns are already taken.
func (r *Repository) StaffExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var count int64
	if err = r.db.WithContext(ctx).Model(&models.StaffAccount{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return false, false, err
	}
	usernameTaken = count > 0

	if err = r.db.WithContext(ctx).Model(&models.StaffAccount{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return false, false, err
	}
	emailTaken = count > 0
	return usernameTaken, emailTaken, nil
}

// SetStaffActive flips the active flag on a staff account.
func (r *Repository) SetStaffActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.StaffAccount{}).
		Where("id = ?", id).
		UpdateColumn("is_active", active).Error
}

// StampStaffLogin records the successful login time.
func (r *Repository) StampStaffLogin(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.StaffAccount{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", now).Error
}

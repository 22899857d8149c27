package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ===========================================================================
// Find Options
// Các tuỳ chọn chung cho query list: phân trang, sort, filter
// ===========================================================================

// FindOptions tuỳ chọn cho các query tìm danh sách
type FindOptions struct {
	// Offset vị trí bắt đầu
	Offset int

	// Limit số record tối đa
	Limit int

	// OrderBy cột để sort
	OrderBy string

	// OrderDir hướng sort: asc hoặc desc
	OrderDir string

	// Filters các điều kiện filter bổ sung (map cột -> giá trị)
	Filters map[string]interface{}
}

// SetDefaults set giá trị mặc định
func (o *FindOptions) SetDefaults() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.OrderBy == "" {
		o.OrderBy = "created_at"
	}
	if o.OrderDir != "asc" && o.OrderDir != "desc" {
		o.OrderDir = "desc"
	}
}

// GetOrderClause trả về order clause cho GORM
func (o *FindOptions) GetOrderClause() string {
	return fmt.Sprintf("%s %s", o.OrderBy, o.OrderDir)
}

// ===========================================================================
// Find-or-create race
// ===========================================================================

// findOrCreateRace chạy chu trình find -> create cho các entity có unique
// index. Hai writer đồng thời có thể cùng thấy record-not-found và cùng
// create; bên thua nhận duplicated key và tìm lại record của bên thắng
func findOrCreateRace[T any](
	find func() (*T, error),
	create func() (*T, error),
) (*T, bool, error) {
	existing, err := find()
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created, createErr := create()
	if createErr == nil {
		return created, true, nil
	}

	// Thua race: record đã được tạo bởi writer khác
	if errors.Is(createErr, gorm.ErrDuplicatedKey) {
		winner, err := find()
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	return nil, false, createErr
}

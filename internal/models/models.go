package models

// ===========================================================================
// Models Index
// Cung cấp danh sách tất cả models cho GORM AutoMigrate
// ===========================================================================

// AllModels trả về danh sách tất cả models
// Dùng cho database.AutoMigrate() để tự động tạo/update tables
func AllModels() []interface{} {
	return []interface{}{
		&Store{},             // Cửa hàng (tenant)
		&Agent{},             // Nhân viên dashboard
		&Customer{},          // Khách hàng
		&Conversation{},      // Cuộc hội thoại
		&Message{},           // Tin nhắn
		&Broadcast{},         // Chiến dịch broadcast
		&KnowledgeDocument{}, // Tài liệu kiến thức cho AI
		&WebhookEvent{},      // Sự kiện webhook
	}
}

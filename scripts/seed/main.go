//go:build ignore

// ===========================================================================
// Script tạo seed data cho development/testing
// Chạy: go run scripts/seed/main.go
// ===========================================================================

package main

import (
	"fmt"
	"log"

	"storechat-gin/internal/config"
	"storechat-gin/internal/database"
	"storechat-gin/internal/models"
	"storechat-gin/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	fmt.Println("🌱 Bắt đầu seed data...")

	// Load config
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Không thể load config: %v", err)
	}

	// Khởi tạo logger
	zapLog, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Không thể tạo logger: %v", err)
	}

	// Kết nối database
	db, err := database.NewConnection(&cfg.Database, zapLog)
	if err != nil {
		log.Fatalf("Không thể kết nối database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Không thể migrate: %v", err)
	}

	fmt.Println("✅ Đã kết nối database")

	// =========================================================================
	// 1. Tạo Store
	// =========================================================================
	store := &models.Store{
		Name: "Shop Mỹ Phẩm Demo",
		Slug: "demo-shop",
		Persona: models.AiPersona{
			AiName:                 "Lan",
			AiDescription:          "Shop mỹ phẩm chính hãng, ship toàn quốc",
			AiIdentity:             "nhân viên tư vấn bán hàng",
			AiStyle:                "thân thiện, xưng em gọi khách là anh/chị",
			AiRequirements:         "Luôn trả lời bằng tiếng Việt. Hỏi lại khi chưa rõ nhu cầu.",
			AiExceptions:           "chính trị, tôn giáo, sản phẩm của shop khác",
			AiPriorityInstructions: "Khi khách hỏi giá ship: freeship cho đơn từ 500k.",
		},
		Widget: models.WidgetSettings{
			WelcomeMessage: "Xin chào! Em là Lan, em có thể giúp gì cho anh/chị ạ?",
			PrimaryColor:   "#e91e63",
		},
		IsActive: true,
	}

	// Kiểm tra đã tồn tại chưa
	var existingStore models.Store
	if err := db.Where("slug = ?", store.Slug).First(&existingStore).Error; err == nil {
		fmt.Println("⚠️  Store 'demo-shop' đã tồn tại, sử dụng ID hiện có")
		store = &existingStore
	} else {
		if err := db.Create(store).Error; err != nil {
			log.Fatalf("Không thể tạo store: %v", err)
		}
		fmt.Printf("✅ Đã tạo Store: %s (ID: %s)\n", store.Name, store.ID)
	}

	// =========================================================================
	// 2. Tạo Agents
	// =========================================================================
	agents := []*models.Agent{
		{
			StoreID:  store.ID,
			Email:    "owner@demo.com",
			Name:     "Chủ Shop",
			Role:     models.RoleOwner,
			IsActive: true,
		},
		{
			StoreID:  store.ID,
			Email:    "staff@demo.com",
			Name:     "Nhân Viên Một",
			Role:     models.RoleStaff,
			IsActive: true,
		},
	}

	for _, agent := range agents {
		if err := agent.SetPassword("Password123!"); err != nil {
			zapLog.Warn("Không thể set password", zap.Error(err))
		}

		var existing models.Agent
		if err := db.Where("store_id = ? AND email = ?", store.ID, agent.Email).First(&existing).Error; err == nil {
			fmt.Printf("⚠️  Agent '%s' đã tồn tại\n", agent.Email)
			continue
		}

		if err := db.Create(agent).Error; err != nil {
			zapLog.Warn("Không thể tạo agent", zap.String("email", agent.Email), zap.Error(err))
		} else {
			fmt.Printf("✅ Đã tạo Agent: %s (%s)\n", agent.Name, agent.Email)
		}
	}

	// =========================================================================
	// 3. Tạo Knowledge Documents
	// =========================================================================
	docs := []*models.KnowledgeDocument{
		{
			StoreID:    store.ID,
			Title:      "Chính sách đổi trả",
			Content:    "Shop nhận đổi trả trong 7 ngày với sản phẩm còn nguyên seal. Khách chịu phí ship chiều về trừ khi lỗi do shop.",
			Status:     models.DocumentCompleted,
			SourceType: "manual",
		},
		{
			StoreID:    store.ID,
			Title:      "Bảng giá sản phẩm",
			Content:    "Son kem lì: 250.000đ. Kem chống nắng SPF50: 320.000đ. Serum vitamin C: 450.000đ.",
			Status:     models.DocumentCompleted,
			SourceType: "manual",
		},
		{
			StoreID:    store.ID,
			Title:      "Tài liệu đang xử lý",
			Content:    "",
			Status:     models.DocumentProcessing,
			SourceType: "url",
		},
	}

	for _, doc := range docs {
		var existing models.KnowledgeDocument
		if err := db.Where("store_id = ? AND title = ?", store.ID, doc.Title).First(&existing).Error; err == nil {
			fmt.Printf("⚠️  Document '%s' đã tồn tại\n", doc.Title)
			continue
		}

		if err := db.Create(doc).Error; err != nil {
			zapLog.Warn("Không thể tạo document", zap.String("title", doc.Title), zap.Error(err))
		} else {
			fmt.Printf("✅ Đã tạo Document: %s [%s]\n", doc.Title, doc.Status)
		}
	}

	fmt.Println("")
	fmt.Println("🎉 Seed hoàn tất!")
	fmt.Println("   Login: owner@demo.com / Password123! (store: demo-shop)")
	fmt.Println("   Widget: POST /api/v1/widget/demo-shop/chat")
}

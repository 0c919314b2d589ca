package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pixeloria/internal/config"
	"pixeloria/internal/models"
	"pixeloria/internal/providers"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()
	if cfg.Database.Host == "" {
		cfg = config.GetDefaultConfig()
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	if err := db.AutoMigrate(
		&models.ChatSession{},
		&models.ChatMessage{},
		&models.ProviderCredential{},
		&models.AdminPresence{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// 消息按会话读取、会话列表按活跃时间排序
	db.Exec("CREATE INDEX IF NOT EXISTS idx_chat_messages_session_id ON chat_messages(session_id, id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_chat_sessions_status_activity ON chat_sessions(status, last_activity)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_chat_sessions_type_status ON chat_sessions(chat_type, status)")

	log.Println("Additional indexes created successfully!")

	if len(os.Args) > 1 && os.Args[1] == "--seed" {
		log.Println("Seeding default data...")
		seedDefaultData(db)
		log.Println("Default data seeded successfully!")
	}

	log.Println("Migration process completed!")
}

// seedDefaultData 写入提供商目录元数据与演示管理员
func seedDefaultData(db *gorm.DB) {
	registry := providers.NewRegistry()
	for _, id := range registry.IDs() {
		provider, _ := registry.Get(id)

		var existing models.ProviderCredential
		if err := db.Where("id = ?", provider.ID).First(&existing).Error; err == nil {
			continue
		}
		record := models.ProviderCredential{
			ID:          provider.ID,
			Name:        provider.Name,
			Description: provider.Description,
			Icon:        provider.Icon,
			Color:       provider.Color,
			ModelName:   provider.DefaultModel,
			IsEnabled:   false,
			Status:      "not_configured",
		}
		db.Create(&record)
		log.Printf("Created provider metadata for %s", provider.ID)
	}

	var admin models.AdminPresence
	if err := db.Where("admin_id = ?", "admin").First(&admin).Error; err != nil {
		db.Create(&models.AdminPresence{
			AdminID:       "admin",
			IsOnline:      false,
			StatusMessage: "Default admin account",
		})
		log.Println("Created default admin presence row")
	}
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/membership-gin/internal/api"
	"github.com/mautops/membership-gin/internal/auth"
	"github.com/mautops/membership-gin/internal/database"
	"github.com/mautops/membership-gin/internal/model"
	"github.com/mautops/membership-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// createAdminCmd represents the create-admin command
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account directly in the database.
Use this to bootstrap the first super_admin; further administrators
can then be created through the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// 2. 连接数据库并确保表结构存在
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		// 3. 创建管理员
		input := &service.CreateAdminInput{}
		input.Username, _ = cmd.Flags().GetString("username")
		input.Email, _ = cmd.Flags().GetString("email")
		input.Password, _ = cmd.Flags().GetString("password")
		input.Role, _ = cmd.Flags().GetString("role")

		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)
		authService := service.NewAuthService(db, tokens, cfg.Auth.BcryptCost, logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		admin, err := authService.SeedAdmin(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"admin_id": admin.ID,
			"username": admin.Username,
			"role":     admin.Role,
		}).Info("Administrator created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd)

	createAdminCmd.Flags().String("username", "", "Administrator username")
	createAdminCmd.Flags().String("email", "", "Administrator email")
	createAdminCmd.Flags().String("password", "", "Administrator password (min 8 characters)")
	createAdminCmd.Flags().String("role", model.RoleSuperAdmin, "Role: super_admin, admin or reviewer")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")
}

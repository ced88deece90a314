package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourabh1428/query-editor/internal/config"
	"github.com/sourabh1428/query-editor/internal/database"
	"github.com/sourabh1428/query-editor/internal/domain/model"
	"github.com/sourabh1428/query-editor/internal/repository"
	"github.com/sourabh1428/query-editor/internal/service"
)

type userCreateOptions struct {
	username string
	email    string
	password string
	role     string
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Управление учётными записями",
	}

	var opts userCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Создать пользователя с указанной ролью",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserCreate(cmd, opts)
		},
	}
	create.Flags().StringVar(&opts.username, "username", "", "имя пользователя")
	create.Flags().StringVar(&opts.email, "email", "", "адрес электронной почты")
	create.Flags().StringVar(&opts.password, "password", "", "пароль")
	create.Flags().StringVar(&opts.role, "role", string(model.RoleRegularUser), "роль: regular_user или admin_user")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)

	return cmd
}

func runUserCreate(cmd *cobra.Command, opts userCreateOptions) error {
	role := model.Role(opts.role)
	if !role.Valid() {
		return fmt.Errorf("недопустимая роль %q, допустимые: %s, %s", opts.role, model.RoleRegularUser, model.RoleAdminUser)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		return fmt.Errorf("загрузка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)

	ctx := cmd.Context()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	auth := service.NewAuthService(repository.NewUserRepository(pool), nil, logger)
	u, err := auth.CreateUser(ctx, service.NewUserInput{
		Username: opts.username,
		Email:    opts.email,
		Password: opts.password,
	}, role)
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			return errors.New("пользователь с таким именем или email уже существует")
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Создан пользователь %s (id=%d, role=%s)\n", u.Username, u.ID, u.Role)
	return nil
}

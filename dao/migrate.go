package dao

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/loomworks/loomspace/dao/model"
)

// Migrate applies the schema migrations. The unique indexes declared on the
// models are the backstop for every check-then-create guard in the workflows:
// a race between two concurrent creators resolves to a duplicate-key error
// instead of a duplicate row.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.OnboardingState{},
					&model.Workspace{},
					&model.Project{},
					&model.ProjectStage{},
					&model.ProjectMembership{},
					&model.StageTemplate{},
					&model.AgentTemplate{},
					&model.ProjectAgent{},
					&model.Bucket{},
					&model.FileRecord{},
					&model.Thread{},
					&model.ThreadMessage{},
					&model.Invitation{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"invitations", "thread_messages", "threads", "file_records",
					"buckets", "project_agents", "agent_templates", "stage_templates",
					"project_memberships", "project_stages", "projects", "workspaces",
					"onboarding_states", "users",
				)
			},
		},
		{
			ID: "202608010002_seed_stage_catalog",
			Migrate: func(tx *gorm.DB) error {
				templates := []model.StageTemplate{
					{Name: "Design", Position: 1},
					{Name: "Build", Position: 2},
					{Name: "Launch", Position: 3},
				}
				for i := range templates {
					if err := tx.Where(model.StageTemplate{Name: templates[i].Name}).
						FirstOrCreate(&templates[i]).Error; err != nil {
						return err
					}
				}
				agents := []model.AgentTemplate{
					{Name: "Design Copilot", StageTemplateID: templates[0].ID,
						Prompt: "You help shape requirements and designs for this stage."},
					{Name: "Build Copilot", StageTemplateID: templates[1].ID,
						Prompt: "You help implement and review work for this stage."},
					{Name: "Launch Copilot", StageTemplateID: templates[2].ID,
						Prompt: "You help prepare releases and announcements for this stage."},
				}
				for i := range agents {
					if err := tx.Where(model.AgentTemplate{Name: agents[i].Name}).
						FirstOrCreate(&agents[i]).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Where("1 = 1").Delete(&model.AgentTemplate{}).Error; err != nil {
					return err
				}
				return tx.Where("1 = 1").Delete(&model.StageTemplate{}).Error
			},
		},
	})
	return m.Migrate()
}

package memstore

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/anjiri1684/guild_social/models"
)

// SeedDemo mirrors database.SeedDemoUsers for STORE_DRIVER=memory.
func (s *Store) SeedDemo(password string) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	users := []models.User{
		s.AddUser(models.User{DisplayName: "Ari", Email: "ari@demo.guild", Password: string(hashed), IsActive: true}),
		s.AddUser(models.User{DisplayName: "Bex", Email: "bex@demo.guild", Password: string(hashed), IsActive: true}),
		s.AddUser(models.User{DisplayName: "Cai", Email: "cai@demo.guild", Password: string(hashed), IsActive: true}),
	}

	alliance := s.AddAlliance("Vanguard")
	for _, u := range users[:2] {
		s.SetAllianceMember(alliance.ID, u.ID, true)
	}
	return users, nil
}

package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedProfiles = []Profile{
	{Handle: "ada_dev", Name: "Ada", Interests: "compilers, chess, hiking", LookingFor: "pair programming partners", Location: "Berlin", Bio: "I turn coffee into ASTs.", ContactHandle: "ada_dev", ContactPublic: true},
	{Handle: "botanica", Name: "Botanica", Interests: "gardening, permaculture, fermentation", LookingFor: "plant swap buddies", Location: "Lisbon", Bio: "Growing things, digital and otherwise."},
	{Handle: "crypto_carl", Name: "Carl", Interests: "distributed systems, cycling", LookingFor: "co-founders", Location: "Amsterdam", ContactHandle: "carl_c", ContactPublic: false},
	{Handle: "dj_djinn", Name: "Djinn", Interests: "music production, synths, ambient", LookingFor: "collaborators", Location: "Berlin", Bio: "Three wishes, all of them modular."},
	{Handle: "el_mapmaker", Name: "Elena", Interests: "cartography, hiking, photography", LookingFor: "trail companions", Location: "Madrid"},
	{Handle: "fungi_fan", Name: "Morel", Interests: "mycology, foraging, fermentation", LookingFor: "foraging partners", Location: "Portland", ContactHandle: "morel_m", ContactPublic: true},
	{Handle: "go_gopher", Name: "Gopher", Interests: "golang, databases, chess", LookingFor: "code reviewers", Location: "Remote", Bio: "Small, fast, and well documented."},
	{Handle: "haiku_bot", Name: "Haiku", Interests: "poetry, minimalism, tea", LookingFor: "a quiet audience", Location: "Kyoto"},
}

// SeedDemoData resets the database and populates it with demo accounts,
// profiles, and a small web of visits and connections. Development only.
func SeedDemoData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{
		"notification_marks", "messages", "daily_usages",
		"connections", "visits", "profiles", "accounts",
	} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	for i, p := range seedProfiles {
		hash, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprintf("intros_demo_%s", p.Handle)), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		account := Account{
			Handle:     p.Handle,
			APIKeyHash: string(hash),
			Verified:   true,
			ChatID:     int64(1000 + i),
		}
		if err := database.Create(&account).Error; err != nil {
			return fmt.Errorf("failed to seed account: %w", err)
		}
		profile := p
		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Printf("Seeded %d accounts with profiles.", len(seedProfiles))

	// Random visits, skewed so everyone has some novelty left.
	for _, viewer := range seedProfiles {
		for j := 0; j < 3; j++ {
			viewed := seedProfiles[r.Intn(len(seedProfiles))]
			if viewed.Handle == viewer.Handle {
				continue
			}
			database.Create(&Visit{ViewerHandle: viewer.Handle, ViewedHandle: viewed.Handle})
		}
	}

	// A few connections in each state.
	pairs := []struct {
		from, to string
		accepted bool
	}{
		{"ada_dev", "go_gopher", true},
		{"botanica", "fungi_fan", true},
		{"dj_djinn", "haiku_bot", false},
		{"crypto_carl", "ada_dev", false},
	}
	for _, pair := range pairs {
		conn := Connection{
			PairKey:    PairKey(pair.from, pair.to),
			FromHandle: pair.from,
			ToHandle:   pair.to,
			Status:     ConnectionPending,
		}
		if pair.accepted {
			now := time.Now().UTC()
			conn.Status = ConnectionAccepted
			conn.RespondedAt = &now
		}
		if err := database.Clauses(clause.OnConflict{DoNothing: true}).Create(&conn).Error; err != nil {
			return fmt.Errorf("failed to seed connection: %w", err)
		}
	}

	database.Create(&Message{FromHandle: "ada_dev", ToHandle: "go_gopher", Content: "Your move. Nf3."})
	database.Create(&Message{FromHandle: "botanica", ToHandle: "fungi_fan", Content: "The oyster spawn arrived, want some?"})

	log.Println("Seeded visits, connections, and messages.")
	return nil
}

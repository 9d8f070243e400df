package dotenv

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads .env (or the file named by KEEPER_ENV_FILE) into the process
// environment. Variables already set win. A missing default file is not an
// error; a missing explicit file is.
func Load() error {
	path := strings.TrimSpace(os.Getenv("KEEPER_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

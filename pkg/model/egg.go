package model

type Nest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type EggImage struct {
	Label string `json:"label"`
	Image string `json:"image"`
}

type Egg struct {
	ID      int64      `json:"-"`
	UUID    string     `json:"uuid"`
	NestID  int64      `json:"-"`
	Name    string     `json:"name"`
	Startup string     `json:"startup"`
	Images  []EggImage `json:"docker_images"`
}

// DefaultImage is the first declared image, or "" when the egg declares none.
func (e *Egg) DefaultImage() string {
	if len(e.Images) == 0 {
		return ""
	}
	return e.Images[0].Image
}

type EggVariable struct {
	EggID        int64
	EnvVariable  string
	DefaultValue string
}

// EggRule allows splits of servers running any of Eggs to use any of AllowedEggs.
type EggRule struct {
	ID          int64   `json:"id"`
	Eggs        []int64 `json:"eggs"`
	AllowedEggs []int64 `json:"allowed_eggs"`
}

func (r *EggRule) Matches(eggID int64) bool {
	for _, id := range r.Eggs {
		if id == eggID {
			return true
		}
	}
	return false
}

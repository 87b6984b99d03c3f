package model

// Category はCMS上のレシピカテゴリの射影。
type Category struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Ingredient はレシピの材料。
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// Recipe はCMS上のレシピの射影。
// Lockedはプランの上限を超えたレシピであることを示し、その場合は詳細を含まない。
type Recipe struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Slug        string       `json:"slug"`
	Description string       `json:"description,omitempty"`
	Excerpt     string       `json:"excerpt,omitempty"`
	CookingTime int          `json:"cooking_time,omitempty"`
	Servings    int          `json:"servings,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Ingredients []Ingredient `json:"ingredients,omitempty"`
	Steps       []string     `json:"steps,omitempty"`
	Locked      bool         `json:"locked"`
}

// OnboardingSlide はオンボーディング画面の1枚分の内容。
type OnboardingSlide struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"image_url,omitempty"`
}

// OnboardingConfig はCMS上のオンボーディング設定の射影。
type OnboardingConfig struct {
	Title  string            `json:"title"`
	Slides []OnboardingSlide `json:"slides"`
}

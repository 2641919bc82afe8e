package models

// Outline - структурированный план презентации: упорядоченные секции,
// внутри каждой - упорядоченные заготовки слайдов.
// Создается один раз за запуск генерации и после сохранения сессии не меняется:
// индексы секций и слайдов - это схема адресации для последующих правок.
type Outline struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section - одна секция плана. Index позиционный (0-based) и стабильный
// на все время жизни сессии.
type Section struct {
	Index      int         `json:"index"`
	Title      string      `json:"title"`
	SlideStubs []SlideStub `json:"slide_stubs"`
}

// SlideStub - заготовка слайда: заголовок и тезисы.
// Потребляется ровно один раз экспандером контента.
type SlideStub struct {
	Index         int      `json:"index"`
	Title         string   `json:"title"`
	TalkingPoints []string `json:"talking_points"`
}

// TotalSlides возвращает суммарное число заготовок слайдов по всем секциям.
func (o *Outline) TotalSlides() int {
	total := 0
	for _, s := range o.Sections {
		total += len(s.SlideStubs)
	}
	return total
}

// Package model содержит доменные сущности витрины кондитерской.
package model

import "errors"

// ErrInvalidRating возвращается, если оценка отзыва выходит за пределы диапазона 1..5.
var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	// ErrInvalidPrice возвращается при отрицательной цене.
	ErrInvalidPrice = errors.New("price must be non-negative")
	// ErrUnknownCategory возвращается для категории вне известного набора.
	ErrUnknownCategory = errors.New("unknown sweet category")
	// ErrUnknownRole возвращается для роли вне известного набора.
	ErrUnknownRole = errors.New("unknown role")
)

// Category описывает категорию сладости. Набор значений закрыт на стороне сервиса.
type Category string

const (
	CategoryChocolate Category = "chocolate"
	CategoryCake      Category = "cake"
	CategoryCandy     Category = "candy"
	CategoryGlucose   Category = "glucose"
	CategoryToffee    Category = "toffee"
	CategoryOther     Category = "other"
)

// Valid сообщает, входит ли категория в известный набор значений.
func (c Category) Valid() bool {
	switch c {
	case CategoryChocolate, CategoryCake, CategoryCandy, CategoryGlucose, CategoryToffee, CategoryOther:
		return true
	default:
		return false
	}
}

// CategoryLabel возвращает отображаемое название категории. Для неизвестного
// значения возвращается ErrUnknownCategory: набор закрыт, но серверная часть
// может расшириться раньше клиента.
func CategoryLabel(c Category) (string, error) {
	switch c {
	case CategoryChocolate:
		return "Chocolate", nil
	case CategoryCake:
		return "Cake", nil
	case CategoryCandy:
		return "Candy", nil
	case CategoryGlucose:
		return "Glucose", nil
	case CategoryToffee:
		return "Toffee", nil
	case CategoryOther:
		return "Other", nil
	default:
		return "", ErrUnknownCategory
	}
}

// Sweet описывает позицию каталога. Name уникально идентифицирует сладость,
// Price хранится в минимальных единицах валюты.
type Sweet struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Image       string   `json:"image"`
	Price       int64    `json:"price"`
}

// Review описывает отзыв о гигиене магазина. Author — непрозрачная ссылка
// на идентичность автора; отзыв неизменяем после отправки.
type Review struct {
	Author     string `json:"author"`
	Rating     int    `json:"rating"`
	ReviewText string `json:"reviewText,omitempty"`
}

// UserProfile описывает профиль пользователя, связанный с идентичностью один к одному.
type UserProfile struct {
	Name string `json:"name"`
}

// Role описывает роль вызывающего.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid сообщает, входит ли роль в известный набор значений.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// ValidateRating проверяет, что оценка отзыва лежит в диапазоне 1..5.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// ValidatePrice проверяет, что цена неотрицательна.
func ValidatePrice(price int64) error {
	if price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ReviewStats содержит агрегат по отзывам. Average равен 0 при пустом наборе —
// это сигнальное значение «нет данных»: реальная оценка не бывает ниже 1,
// поэтому потребители различают пустой набор по Count.
type ReviewStats struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Summarize вычисляет среднюю оценку и количество отзывов.
func Summarize(reviews []Review) ReviewStats {
	if len(reviews) == 0 {
		return ReviewStats{}
	}

	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}

	return ReviewStats{
		Average: float64(sum) / float64(len(reviews)),
		Count:   len(reviews),
	}
}

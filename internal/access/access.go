// Package access содержит правила доступа витрины: какая роль может выполнять
// какую операцию. Проверка выполняется до обращения к удалённому сервису и
// служит подсказкой интерфейсу; авторитетная проверка остаётся на сервере.
package access

import (
	"errors"

	"github.com/mmeshcher/sweetshop-storefront/internal/model"
)

// ErrNotSignedIn возвращается при попытке защищённой операции без входа в систему.
var (
	ErrNotSignedIn = errors.New("sign in to perform this action")
	// ErrInsufficientRole возвращается, если роль вызывающего недостаточна для операции.
	ErrInsufficientRole = errors.New("your role does not permit this action")
)

// Operation перечисляет операции витрины, для которых принимается решение о доступе.
type Operation string

const (
	OpListSweets        Operation = "list_sweets"
	OpAddSweet          Operation = "add_sweet"
	OpUpdateSweetPrice  Operation = "update_sweet_price"
	OpListReviews       Operation = "list_reviews"
	OpSubmitReview      Operation = "submit_review"
	OpGetCallerProfile  Operation = "get_caller_profile"
	OpSaveCallerProfile Operation = "save_caller_profile"
	OpGetProfile        Operation = "get_profile"
	OpGetCallerRole     Operation = "get_caller_role"
	OpAssignRole        Operation = "assign_role"
	OpIsCallerAdmin     Operation = "is_caller_admin"
)

// requirement описывает минимальное требование операции.
type requirement int

const (
	requireNone requirement = iota
	requireAuthenticated
	requireAdmin
)

// requirements — статическая таблица требований по операциям. Операция,
// отсутствующая в таблице, считается запрещённой.
var requirements = map[Operation]requirement{
	OpListSweets:        requireNone,
	OpListReviews:       requireNone,
	OpGetProfile:        requireNone,
	OpGetCallerRole:     requireNone,
	OpIsCallerAdmin:     requireNone,
	OpSubmitReview:      requireAuthenticated,
	OpGetCallerProfile:  requireAuthenticated,
	OpSaveCallerProfile: requireAuthenticated,
	OpAddSweet:          requireAdmin,
	OpUpdateSweetPrice:  requireAdmin,
	OpAssignRole:        requireAdmin,
}

// Decision — результат проверки доступа.
type Decision int

const (
	// Allowed означает, что операция разрешена.
	Allowed Decision = iota
	// DeniedNotSignedIn означает отказ анонимному вызывающему.
	DeniedNotSignedIn
	// DeniedInsufficientRole означает отказ аутентифицированному вызывающему
	// с недостаточной ролью.
	DeniedInsufficientRole
)

// Check принимает решение о доступе для роли и признака анонимности.
// Функция чистая: результат зависит только от аргументов.
func Check(role model.Role, anonymous bool, op Operation) Decision {
	req, ok := requirements[op]
	if !ok {
		if anonymous {
			return DeniedNotSignedIn
		}
		return DeniedInsufficientRole
	}

	switch req {
	case requireNone:
		return Allowed
	case requireAuthenticated:
		if anonymous {
			return DeniedNotSignedIn
		}
		return Allowed
	default:
		if anonymous {
			return DeniedNotSignedIn
		}
		if role != model.RoleAdmin {
			return DeniedInsufficientRole
		}
		return Allowed
	}
}

// Err преобразует решение в ошибку авторизации; для Allowed возвращается nil.
func (d Decision) Err() error {
	switch d {
	case DeniedNotSignedIn:
		return ErrNotSignedIn
	case DeniedInsufficientRole:
		return ErrInsufficientRole
	default:
		return nil
	}
}

// Operations возвращает полный набор известных операций. Используется тестами
// для исчерпывающей проверки таблицы требований.
func Operations() []Operation {
	ops := make([]Operation, 0, len(requirements))
	for op := range requirements {
		ops = append(ops, op)
	}
	return ops
}

// Package federated проверяет токены внешних провайдеров входа:
// id_token Google через эндпоинт tokeninfo и identity token Apple
// по ключам JWKS.
package federated

// Identity подтверждённая личность из токена провайдера.
type Identity struct {
	Email string
	Name  string
}

// Package iocli абстрагирует терминальный ввод-вывод команд клиента
package iocli

//go:generate moq -out io_mock.go . IO

// IO выделяет терминал в интерфейс, чтобы команды тестировались
// со скриптованным вводом
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
	Confirm(prompt string) (bool, error)
	Write(p []byte) (n int, err error)
}

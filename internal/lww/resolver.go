// Package lww реализует разрешение конфликтов Last-Write-Wins и локальное
// представление коллекции записей сцены.
//
// Мерж пишется целиком по записи, а не по полям: если два пользователя
// одновременно правят разные поля одной записи, побеждает запись целиком
// с большим timestamp, а проигравшие поля теряются. Это осознанное
// упрощение: пополевой мерж потребовал бы timestamp на каждое поле.
package lww

import "github.com/iudanet/scenesync/internal/models"

// RemoteWins решает, должна ли удаленная версия записи заменить локальную.
// Удаленная побеждает всегда, кроме случая, когда локальная строго новее:
// ничья отдается удаленной стороне, потому что стор авторитетен —
// его версия уже принята, локальная еще в полете.
func RemoteWins(local, remote *models.Record) bool {
	return !local.IsNewerThan(remote)
}

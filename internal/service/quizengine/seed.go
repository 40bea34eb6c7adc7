package quizengine

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// seedDomain отделяет зерна попыток от любых других хешей тех же идентификаторов
const seedDomain = "bible-tournament/qualification-seed/v1\x00"

// DeriveSeed выводит зерно рандомизации попытки.
// Одинаковые входы всегда дают одно и то же зерно, что позволяет восстановить попытку при аудите.
func DeriveSeed(tenantID, userID, tournamentID uint, attemptNumber int) int64 {
	buf := make([]byte, 0, len(seedDomain)+32)
	buf = append(buf, seedDomain...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(tenantID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(userID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(tournamentID))
	buf = binary.BigEndian.AppendUint64(buf, uint64(attemptNumber))

	sum := blake2b.Sum256(buf)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

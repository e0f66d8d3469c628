package logger

// Logger — общий интерфейс логирования приложения.
// Errorf принимает ошибку отдельным аргументом, чтобы она попадала
// в структурированные поля, а не склеивалась с сообщением.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(err error, format string, args ...any)
}

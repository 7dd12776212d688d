package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	testCases := []struct {
		name   string
		level  string
		appEnv string
		want   gormlogger.LogLevel
	}{
		{name: "未設定・dev は info", level: "", appEnv: "dev", want: gormlogger.Info},
		{name: "未設定・本番は warn", level: "", appEnv: "", want: gormlogger.Warn},
		{name: "明示指定は環境より優先", level: "silent", appEnv: "dev", want: gormlogger.Silent},
		{name: "大文字も受け付ける", level: "ERROR", appEnv: "", want: gormlogger.Error},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := gormLogLevel(tc.level, tc.appEnv)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("異常系: 未知のレベル", func(t *testing.T) {
		_, err := gormLogLevel("verbose", "")
		assert.Error(t, err)
	})
}

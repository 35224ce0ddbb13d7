package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTranslator(t *testing.T) {
	tests := []struct {
		line string
		want SignalKind
	}{
		{"Connecting to Steam3...", SignalConnecting},
		{"Logging 'someone' into Steam3... Done!", SignalConnected},
		{"Please enter your 2 factor auth code from your authenticator app: ", SignalTwoFactorRequired},
		{"STEAM GUARD! Please enter the auth code sent to the email at a***@b.com: ", SignalTwoFactorRequired},
		{"STEAM_GUARD_DEVICE_CODE_REQUIRED", SignalTwoFactorRequired},
		{"Use the Steam Mobile App to confirm your sign in...", SignalMobileConfirmation},
		{"The previous 2-factor auth code you have provided is incorrect.", SignalCodeRejected},
		{"Failed to authenticate with Steam: No code was provided by the authenticator.", SignalCodeMissing},
		{"Enter account password for \"someone\": ", SignalPasswordRequired},
		{"Unable to login to Steam: InvalidPassword", SignalLoginFailed},
		{"Total downloaded: 1234 bytes (5678 bytes uncompressed) from 1 depots", SignalDownloadComplete},
		{"Got AppInfo for 1966720", SignalOutput},
		{"", SignalOutput},
	}

	tr := DefaultTranslator{}
	for _, tt := range tests {
		got := tr.Translate(tt.line)
		assert.Equal(t, tt.want, got.Kind, "line %q", tt.line)
	}
}

func TestDefaultTranslator_TotalBytes(t *testing.T) {
	sig := DefaultTranslator{}.Translate("Total downloaded: 1234 bytes (5678 bytes uncompressed) from 1 depots")
	assert.Equal(t, SignalDownloadComplete, sig.Kind)
	assert.Equal(t, int64(1234), sig.Bytes)

	sig = DefaultTranslator{}.Translate("Total downloaded: unknown")
	assert.Equal(t, SignalDownloadComplete, sig.Kind)
	assert.Zero(t, sig.Bytes)
}

func TestDefaultTranslator_Progress(t *testing.T) {
	tr := DefaultTranslator{}

	sig := tr.Translate(" 28.91% Lethal Company_Data/resources.assets")
	assert.Equal(t, SignalProgress, sig.Kind)
	assert.Equal(t, int64(2891), sig.Current)
	assert.Equal(t, int64(ProgressTotal), sig.Total)
	assert.Equal(t, "Lethal Company_Data/resources.assets", sig.Detail)

	sig = tr.Translate("100% done.txt")
	assert.Equal(t, int64(10000), sig.Current)

	sig = tr.Translate("5.5% a")
	assert.Equal(t, int64(550), sig.Current)
}

func TestCleanLine(t *testing.T) {
	assert.Equal(t, "hello world", CleanLine("\x1b[32mhello\x1b[0m world\r\n"))
	assert.Equal(t, "prompt:", CleanLine("\x1b]0;title\x07prompt: "))
}

func TestSignalKind_NeedsAuth(t *testing.T) {
	assert.True(t, SignalTwoFactorRequired.NeedsAuth())
	assert.True(t, SignalMobileConfirmation.NeedsAuth())
	assert.True(t, SignalPasswordRequired.NeedsAuth())
	assert.False(t, SignalProgress.NeedsAuth())
	assert.False(t, SignalOutput.NeedsAuth())
}

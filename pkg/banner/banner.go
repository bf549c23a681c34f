package banner

import (
	"fmt"

	"chatrelay/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ███████╗██╗      █████╗ ██╗   ██╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝
██║     ███████║███████║   ██║   ██████╔╝█████╗  ██║     ███████║ ╚████╔╝
██║     ██╔══██║██╔══██║   ██║   ██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝
╚██████╗██║  ██║██║  ██║   ██║   ██║  ██║███████╗███████╗██║  ██║   ██║
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝
`

// Print displays the startup banner with the effective runtime settings.
func Print(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", eff.Source)
	if eff.Config != nil {
		if len(eff.Config.Security.SigningKeys) > 0 {
			fmt.Printf("Identity: signed (%d keys)\n", len(eff.Config.Security.SigningKeys))
		} else {
			fmt.Println("Identity: trusted headers (no signing keys)")
		}
		if eff.Config.Blob.Bucket != "" {
			fmt.Printf("Images:   s3://%s\n", eff.Config.Blob.Bucket)
		} else {
			fmt.Println("Images:   disabled (no bucket configured)")
		}
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /v1/messages/{peer}           - Send a message")
	fmt.Println("GET    /v1/conversations/{peer}      - Open a conversation (marks seen)")
	fmt.Println("PUT    /v1/messages/{id}/seen        - Mark one message seen")
	fmt.Println("DELETE /v1/messages/{id}             - Delete a message (tombstone)")
	fmt.Println("POST   /v1/messages/{id}/reactions   - Toggle a reaction")
	fmt.Println("GET    /v1/peers                     - Sidebar peers with unseen counts")
	fmt.Println("GET    /v1/ws                        - Live event channel (websocket)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages/bob' -H 'X-User-ID: alice' -d '{\"text\":\"hello\"}'\n", eff.Addr)
	fmt.Printf("curl 'http://localhost%s/v1/conversations/bob' -H 'X-User-ID: alice'\n", eff.Addr)
}

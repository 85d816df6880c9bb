package agents

import "fmt"

// DefaultImage is the container image an agent host runs.
const DefaultImage = "pixia1234/looking-glass-backend:latest"

// InstallCommand renders the docker invocation an operator runs on the
// agent host so it heartbeats to panelURL.
func InstallCommand(agent Agent, panelURL, image string) string {
	if image == "" {
		image = DefaultImage
	}
	return fmt.Sprintf(
		"docker run -d --name %s -e PANEL_URL=%q -e AGENT_TOKEN=%q %s",
		agent.ID, panelURL, agent.Token, image,
	)
}
